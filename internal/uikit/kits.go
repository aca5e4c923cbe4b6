package uikit

import (
	"strings"

	"indiflow/internal/dom"
)

func AntDesign() Kit {
	return Kit{
		Name: "antd",
		Component: func(el dom.Element) string {
			return classScope(el, 3,
				"ant-select-item-option", "ant-dropdown-menu-item", "ant-cascader-menu-item",
				"ant-menu-item", "ant-tabs-tab", "ant-btn")
		},
		OptionMarkers: []string{"ant-select-item-option", "ant-dropdown-menu-item", "ant-cascader-menu-item"},
		IsTrigger: func(el dom.Element) bool {
			return closestClass(el, 3, "ant-select-selector", "ant-select", "ant-dropdown-trigger", "ant-picker", "ant-cascader-picker") != nil
		},
		TriggerTarget: func(el dom.Element) dom.Element {
			root := closestClass(el, 3, "ant-select")
			if root == nil {
				return closestClass(el, 3, "ant-dropdown-trigger", "ant-picker", "ant-cascader-picker")
			}
			for _, child := range root.Children() {
				if dom.HasClass(child, "ant-select-selector") {
					return child
				}
			}
			return root
		},
		MenuSelectors: []string{".ant-select-dropdown", ".ant-dropdown", ".ant-picker-dropdown", ".ant-cascader-dropdown"},
	}
}

func MaterialUI() Kit {
	return Kit{
		Name: "mui",
		Component: func(el dom.Element) string {
			return classScope(el, 3, "MuiMenuItem-root", "MuiAutocomplete-option", "MuiTab-root", "MuiButton-root")
		},
		OptionMarkers: []string{"muimenuitem", "muiautocomplete-option"},
		IsTrigger: func(el dom.Element) bool {
			return closestClass(el, 2, "MuiSelect-select", "MuiAutocomplete-input", "MuiAutocomplete-popupIndicator") != nil
		},
		TriggerTarget: func(el dom.Element) dom.Element {
			return closestClass(el, 2, "MuiSelect-select", "MuiAutocomplete-input", "MuiAutocomplete-popupIndicator")
		},
		MenuSelectors: []string{".MuiMenu-paper", ".MuiPopover-paper", ".MuiAutocomplete-popper", ".MuiMenu-list"},
	}
}

func Radix() Kit {
	return Kit{
		Name: "radix",
		Component: func(el dom.Element) string {
			if _, ok := el.Attr("data-radix-collection-item"); ok {
				return el.TagName() + "[data-radix-collection-item]"
			}
			return ""
		},
		OptionMarkers: []string{"data-radix-collection-item"},
		IsTrigger: func(el dom.Element) bool {
			id := el.ID()
			return strings.HasPrefix(id, "radix-") && dom.AttrOr(el, "aria-haspopup") != ""
		},
		MenuSelectors: []string{"[data-radix-popper-content-wrapper]", "[data-radix-select-viewport]"},
	}
}

func HeadlessUI() Kit {
	return Kit{
		Name: "headlessui",
		Component: func(el dom.Element) string {
			id := el.ID()
			if strings.HasPrefix(id, "headlessui-listbox-option") || strings.HasPrefix(id, "headlessui-combobox-option") {
				return el.TagName() + `[role="option"]`
			}
			if strings.HasPrefix(id, "headlessui-menu-item") {
				return el.TagName() + `[role="menuitem"]`
			}
			return ""
		},
		OptionMarkers: []string{"headlessui-listbox-option", "headlessui-combobox-option", "headlessui-menu-item"},
		IsTrigger: func(el dom.Element) bool {
			id := el.ID()
			return strings.HasPrefix(id, "headlessui-listbox-button") ||
				strings.HasPrefix(id, "headlessui-menu-button") ||
				strings.HasPrefix(id, "headlessui-combobox-button")
		},
		MenuSelectors: []string{`[id^="headlessui-listbox-options"]`, `[id^="headlessui-menu-items"]`, `[id^="headlessui-combobox-options"]`},
	}
}

func Bootstrap() Kit {
	return Kit{
		Name: "bootstrap",
		Component: func(el dom.Element) string {
			return classScope(el, 2, "dropdown-item", "nav-link")
		},
		OptionMarkers: []string{"dropdown-item"},
		IsTrigger: func(el dom.Element) bool {
			if dom.HasClass(el, "dropdown-toggle") {
				return true
			}
			t := dom.AttrOr(el, "data-bs-toggle")
			if t == "" {
				t = dom.AttrOr(el, "data-toggle")
			}
			return t == "dropdown"
		},
		MenuSelectors: []string{".dropdown-menu.show"},
	}
}

// ARIA covers widgets that follow the WAI-ARIA popup patterns without a
// recognisable class vocabulary.
func ARIA() Kit {
	return Kit{
		Name: "aria",
		OptionMarkers: []string{
			"role=option", "role=menuitem", `[role="option"]`, `[role="menuitem"]`,
			"select-item", "select-option", "dropdown-option",
		},
		IsTrigger: func(el dom.Element) bool {
			if hp, ok := el.Attr("aria-haspopup"); ok && hp != "false" {
				return true
			}
			if _, ok := el.Attr("aria-expanded"); ok && el.TagName() != "a" {
				return true
			}
			for _, c := range el.ClassList() {
				lc := strings.ToLower(c)
				if strings.Contains(lc, "select-trigger") || strings.Contains(lc, "dropdown-trigger") || strings.Contains(lc, "custom-select") {
					return true
				}
			}
			return false
		},
		MenuSelectors: []string{`[role="listbox"]`, `[role="menu"]`, ".select-dropdown", ".dropdown-content"},
	}
}
