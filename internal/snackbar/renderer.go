package snackbar

// Renderer presents the current notification. The queue only issues these
// semantic calls; styling and input handling belong to the implementation.
//
// Methods are called with the queue lock held. Implementations must not call
// back into the Queue synchronously from inside a Renderer method.
type Renderer interface {
	RenderMessage(text string)
	RenderActions(actions []Action)
	SetVisible(visible bool)
	SetActionsVisible(visible bool)
	ClearMessage()
	ClearActions()
}

// SlotRenderer is a Renderer with a fixed number of action slots. Requests
// carrying actions must fill every slot.
type SlotRenderer interface {
	Renderer
	ActionSlots() int
}

// ActionSlots returns the slot count of r, or -1 if r is not slot based.
func ActionSlots(r Renderer) int {
	if sr, ok := r.(SlotRenderer); ok {
		return sr.ActionSlots()
	}
	return -1
}
