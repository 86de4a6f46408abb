package dp

// HookPos defines the enum of possible hooking positions
type HookPos struct {
	Name string
}

// HookCtx is the context that holds all the information about the site that a
// hook is triggered
type HookCtx struct {
	Domain Hookable
	Pos    *HookPos
	Item   any
	Detail any
}

// Hookable defines an object that accept Hooks
type Hookable interface {
	// AcceptHook registers a hook
	AcceptHook(hook Hook)

	// Hooks returns all the hooks registered
	Hooks() []Hook
}

// Named describes something that has a name.
type Named interface {
	Name() string
}

// NamedHookable is something that has a name and can be hooked.
type NamedHookable interface {
	Named
	Hookable
	InvokeHook(ctx HookCtx)
}

// Hook is a short piece of program that can be invoked by a hookable object.
type Hook interface {
	// Func determines what to do if hook is invoked.
	Func(ctx HookCtx)
}

// HookFunc adapts an ordinary function into a Hook.
type HookFunc func(ctx HookCtx)

// Func calls f(ctx).
func (f HookFunc) Func(ctx HookCtx) {
	f(ctx)
}

// Hook positions invoked by the protocol engine.
var (
	HookPosAuxStart         = &HookPos{Name: "AuxStart"}
	HookPosAuxEnd           = &HookPos{Name: "AuxEnd"}
	HookPosTrainingState    = &HookPos{Name: "TrainingState"}
	HookPosTrainingDone     = &HookPos{Name: "TrainingDone"}
	HookPosSidebandSend     = &HookPos{Name: "SidebandSend"}
	HookPosSidebandReceive  = &HookPos{Name: "SidebandReceive"}
	HookPosTopologyNode     = &HookPos{Name: "TopologyNode"}
	HookPosPayloadAllocated = &HookPos{Name: "PayloadAllocated"}
)

// A HookableBase provides some utility function for other type that implement
// the Hookable interface.
type HookableBase struct {
	hooks []Hook
}

// NewHookableBase creates a HookableBase object
func NewHookableBase() *HookableBase {
	h := new(HookableBase)
	h.hooks = make([]Hook, 0)

	return h
}

// AcceptHook register a hook
func (h *HookableBase) AcceptHook(hook Hook) {
	h.hooks = append(h.hooks, hook)
}

// Hooks returns the registered hooks.
func (h *HookableBase) Hooks() []Hook {
	return h.hooks
}

// NumHooks returns the number of hooks registered.
func (h *HookableBase) NumHooks() int {
	return len(h.hooks)
}

// InvokeHook triggers the register Hooks
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	for _, hook := range h.hooks {
		hook.Func(ctx)
	}
}
