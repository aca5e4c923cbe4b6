package browser

import (
	"fmt"

	"github.com/goccy/go-json"
)

// snapshotScript serializes the live DOM with layout and form state into the
// shape of htmldom.Snapshot. Element children keep document order so child
// indices line up with Element.children in the page.
const snapshotScript = `(() => {
	const noText = {SCRIPT: 1, STYLE: 1, NOSCRIPT: 1, TEMPLATE: 1};
	const walk = (el) => {
		const r = el.getBoundingClientRect();
		const cs = getComputedStyle(el);
		const node = {
			tag: el.tagName.toLowerCase(),
			attrs: [],
			rect: {x: r.x, y: r.y, width: r.width, height: r.height},
			cursor: cs.cursor,
			display: cs.display,
			visibility: cs.visibility,
			children: []
		};
		for (const a of el.attributes) node.attrs.push([a.name, a.value]);
		if (el.tagName === 'INPUT' || el.tagName === 'TEXTAREA' || el.tagName === 'SELECT') {
			node.value = String(el.value);
		}
		for (const c of el.childNodes) {
			if (c.nodeType === Node.ELEMENT_NODE) node.children.push(walk(c));
			else if (c.nodeType === Node.TEXT_NODE && !noText[el.tagName]) node.children.push({text: c.data});
		}
		return node;
	};
	return {url: location.href, scrollX: window.scrollX, scrollY: window.scrollY, root: walk(document.documentElement)};
})()`

// recorderScript buffers trusted user events in window.__indiflow until the
// host drains them. It is installed on every new document, so a full page
// load reports itself as a navigate event.
const recorderScript = `(function() {
	if (window.__indiflow) {
		window.__indiflow.active = true;
		return;
	}
	const rec = window.__indiflow = {
		events: [],
		active: true,
		add: function(ev) {
			if (!this.active) return;
			ev.ts = Date.now();
			this.events.push(ev);
		},
		drain: function() {
			const out = this.events;
			this.events = [];
			return out;
		},
		stop: function() {
			this.active = false;
			this.events = [];
		},
		path: function(el) {
			const out = [];
			while (el && el.parentElement) {
				out.unshift(Array.prototype.indexOf.call(el.parentElement.children, el));
				el = el.parentElement;
			}
			return out;
		},
		mods: function(e) {
			return {ctrl: e.ctrlKey, shift: e.shiftKey, alt: e.altKey, meta: e.metaKey};
		}
	};

	document.addEventListener('click', function(e) {
		if (!e.isTrusted || !(e.target instanceof Element)) return;
		rec.add({type: 'click', path: rec.path(e.target), x: e.clientX, y: e.clientY, mods: rec.mods(e)});
	}, true);

	document.addEventListener('input', function(e) {
		const t = e.target;
		if (!e.isTrusted || !(t instanceof Element)) return;
		const tag = t.tagName.toLowerCase();
		if (tag !== 'input' && tag !== 'textarea' && !t.isContentEditable) return;
		rec.add({type: 'input', path: rec.path(t), value: t.isContentEditable ? t.textContent : t.value});
	}, true);

	document.addEventListener('change', function(e) {
		const t = e.target;
		if (!e.isTrusted || !(t instanceof Element)) return;
		const tag = t.tagName.toLowerCase();
		if (tag !== 'select' && tag !== 'input') return;
		rec.add({type: 'change', path: rec.path(t), value: t.value});
	}, true);

	document.addEventListener('keydown', function(e) {
		if (!e.isTrusted || !(e.target instanceof Element)) return;
		rec.add({type: 'keydown', path: rec.path(e.target), key: e.key, mods: rec.mods(e)});
	}, true);

	window.addEventListener('scroll', function(e) {
		// inner scroll containers reach the capture listener too
		if (!e.isTrusted || (e.target !== document && e.target !== window)) return;
		rec.add({type: 'scroll', sx: window.scrollX, sy: window.scrollY});
	}, {capture: true, passive: true});

	const navigated = function() {
		rec.add({type: 'navigate', url: location.href});
	};
	for (const name of ['pushState', 'replaceState']) {
		const orig = history[name];
		history[name] = function() {
			const out = orig.apply(this, arguments);
			navigated();
			return out;
		};
	}
	window.addEventListener('popstate', navigated);
	window.addEventListener('hashchange', navigated);

	const observe = function() {
		new MutationObserver(function(records) {
			rec.add({type: 'mutation', count: records.length});
		}).observe(document.documentElement, {childList: true, subtree: true});
	};
	if (document.documentElement) observe();
	else document.addEventListener('DOMContentLoaded', observe);

	navigated();
})();`

const drainScript = `window.__indiflow ? window.__indiflow.drain() : []`

const stopScript = `window.__indiflow && window.__indiflow.stop()`

const resolvePath = `(function(path) {
	let el = document.documentElement;
	for (const i of path) {
		if (!el) break;
		el = el.children[i];
	}
	return el || null;
})`

// elementScript wraps body in a function that receives the element at path
// as el and args as args. The expression throws when the path no longer
// resolves.
func elementScript(path []int, body string, args interface{}) (string, error) {
	p, err := json.Marshal(path)
	if err != nil {
		return "", err
	}
	if path == nil {
		p = []byte("[]")
	}
	a, err := json.Marshal(args)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`(function(path, args) {
	const el = %s(path);
	if (!el) throw new Error('no element at path ' + JSON.stringify(path));
	%s
})(%s, %s)`, resolvePath, body, p, a), nil
}

const focusBody = `if (typeof el.focus === 'function') el.focus();`

const clickBody = `el.click();`

// setValueBody uses the prototype setter so frameworks that track the
// value property see the change.
const setValueBody = `const proto = el instanceof HTMLTextAreaElement ? HTMLTextAreaElement.prototype
		: el instanceof HTMLSelectElement ? HTMLSelectElement.prototype
		: HTMLInputElement.prototype;
	const desc = Object.getOwnPropertyDescriptor(proto, 'value');
	if (desc && desc.set && el instanceof proto.constructor) desc.set.call(el, args.value);
	else if (el.isContentEditable) el.textContent = args.value;
	else el.value = args.value;`

const dispatchBody = `const init = {
		bubbles: args.bubbles, cancelable: true, view: window,
		clientX: args.clientX, clientY: args.clientY,
		ctrlKey: args.ctrl, shiftKey: args.shift, altKey: args.alt, metaKey: args.meta
	};
	let ev;
	if (args.type === 'click' || args.type.indexOf('mouse') === 0) ev = new MouseEvent(args.type, init);
	else if (args.type.indexOf('key') === 0) ev = new KeyboardEvent(args.type, Object.assign(init, {key: args.key}));
	else if (args.type === 'focus' || args.type === 'blur') ev = new FocusEvent(args.type, {bubbles: args.bubbles});
	else ev = new Event(args.type, {bubbles: args.bubbles, cancelable: true});
	el.dispatchEvent(ev);`

type dispatchArgs struct {
	Type    string  `json:"type"`
	Bubbles bool    `json:"bubbles"`
	ClientX float64 `json:"clientX"`
	ClientY float64 `json:"clientY"`
	Key     string  `json:"key,omitempty"`
	Ctrl    bool    `json:"ctrl"`
	Shift   bool    `json:"shift"`
	Alt     bool    `json:"alt"`
	Meta    bool    `json:"meta"`
}
