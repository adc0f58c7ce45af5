package model

// NodeKind represents the variant of a flow graph node
type NodeKind string

const (
	NodeVariable   NodeKind = "variable"
	NodeAllocation NodeKind = "allocation"
	NodeField      NodeKind = "field"
	NodeConstant   NodeKind = "constant"
	NodeResource   NodeKind = "resource"
	NodeWindow     NodeKind = "window"
	NodeOperation  NodeKind = "operation"
	NodeNull       NodeKind = "null"
)

// IsObject returns true for nodes that stand for a concrete runtime object
func (k NodeKind) IsObject() bool {
	return k == NodeAllocation || k == NodeWindow
}

// ObjectKind classifies what a producer object is
type ObjectKind string

const (
	ObjectView        ObjectKind = "view"         // new View(...) and subclasses
	ObjectInflation   ObjectKind = "inflation"    // view created by layout inflation
	ObjectOptionsMenu ObjectKind = "options-menu" // menu passed to onCreateOptionsMenu
	ObjectContextMenu ObjectKind = "context-menu" // menu passed to onCreateContextMenu
	ObjectListener    ObjectKind = "listener"     // allocation of a listener class
	ObjectFragment    ObjectKind = "fragment"     // new Fragment(...)
	ObjectPlain       ObjectKind = "plain"        // any other allocation

	ObjectActivity       ObjectKind = "activity"
	ObjectFragmentWindow ObjectKind = "fragment-window"
	ObjectDialog         ObjectKind = "dialog"
	ObjectTabSpec        ObjectKind = "tabspec"
)

// IsMenu returns true for options and context menus
func (k ObjectKind) IsMenu() bool {
	return k == ObjectOptionsMenu || k == ObjectContextMenu
}

// IsWindow returns true for the object kinds of window nodes
func (k ObjectKind) IsWindow() bool {
	switch k {
	case ObjectActivity, ObjectFragmentWindow, ObjectDialog, ObjectTabSpec:
		return true
	}
	return false
}

// IsProducer returns true for allocation kinds that supply GUI objects
func (k ObjectKind) IsProducer() bool {
	switch k {
	case ObjectView, ObjectInflation, ObjectOptionsMenu, ObjectContextMenu, ObjectFragment:
		return true
	}
	return false
}

// ParseObjectKind validates an allocation kind read from an external source
func ParseObjectKind(s string) (ObjectKind, bool) {
	switch k := ObjectKind(s); k {
	case ObjectView, ObjectInflation, ObjectOptionsMenu, ObjectContextMenu,
		ObjectListener, ObjectFragment, ObjectPlain:
		return k, true
	case "":
		return ObjectPlain, true
	}
	return "", false
}

// ConstantKind represents the type of a constant node
type ConstantKind string

const (
	ConstantInt    ConstantKind = "int"
	ConstantLong   ConstantKind = "long"
	ConstantString ConstantKind = "string"
)

// ResourceKind represents the resource table an id belongs to
type ResourceKind string

const (
	ResourceLayout    ResourceKind = "layout"
	ResourceMenu      ResourceKind = "menu"
	ResourceWidget    ResourceKind = "widget"
	ResourceString    ResourceKind = "string"
	ResourceAnonymous ResourceKind = "anonymous"
)

// WindowKind represents the framework container type of a window node
type WindowKind string

const (
	WindowActivity WindowKind = "activity"
	WindowFragment WindowKind = "fragment"
	WindowDialog   WindowKind = "dialog"
	WindowTabSpec  WindowKind = "tabspec"
)

// ObjectKind maps a window kind onto the producer classification domain
func (k WindowKind) ObjectKind() ObjectKind {
	switch k {
	case WindowActivity:
		return ObjectActivity
	case WindowFragment:
		return ObjectFragmentWindow
	case WindowDialog:
		return ObjectDialog
	case WindowTabSpec:
		return ObjectTabSpec
	}
	return ""
}

// PerSite returns true when windows of this kind are distinguished by
// allocation site rather than by class alone
func (k WindowKind) PerSite() bool {
	return k == WindowDialog || k == WindowTabSpec
}
