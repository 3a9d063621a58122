package protocol

// Export and import names of the guest module.
const (
	ExportNewContext  = "new_context"
	ExportDropContext = "drop_context"
	ExportEval        = "eval"
	ExportRegister    = "register"

	ImportRegisteredCallback = "registered_callback"
)

// Envelope is implemented by every request and response that crosses the boundary.
type Envelope interface {
	Validate() error
}

// EvalRequest asks the guest to evaluate source in a context.
type EvalRequest struct {
	Context      uint32       `codec:"ctx" json:"ctx"`
	Source       string       `codec:"src" json:"src"`
	ResponseType ResponseType `codec:"rt,omitempty" json:"rt,omitempty"`
}

// Validate implements Envelope.
func (r *EvalRequest) Validate() error {
	if !r.ResponseType.Valid() {
		return Errorf(CodeProtocol, "unknown response type %d", uint8(r.ResponseType))
	}
	return nil
}

// EvalResponse carries either the produced value or the failure.
type EvalResponse struct {
	Value Value  `codec:"v" json:"v"`
	Error *Error `codec:"e,omitempty" json:"e,omitempty"`
}

// Validate implements Envelope.
func (r *EvalResponse) Validate() error {
	if r.Error != nil {
		return r.Error.Validate()
	}
	return r.Value.Validate()
}

// RegisterRequest asks the guest to install a forwarding global named Name.
type RegisterRequest struct {
	Context uint32 `codec:"ctx" json:"ctx"`
	Name    string `codec:"name" json:"name"`
}

// Validate implements Envelope.
func (r *RegisterRequest) Validate() error {
	if r.Name == "" {
		return Errorf(CodeProtocol, "register request without a name")
	}
	return nil
}

// Ack acknowledges a RegisterRequest or DropContextRequest.
type Ack struct {
	Error *Error `codec:"e,omitempty" json:"e,omitempty"`
}

// Validate implements Envelope.
func (r *Ack) Validate() error {
	if r.Error != nil {
		return r.Error.Validate()
	}
	return nil
}

// CallRequest is produced by the guest for every script-initiated call of a registered name.
// Args holds exactly the arguments the script supplied.
type CallRequest struct {
	Context uint32  `codec:"ctx" json:"ctx"`
	Name    string  `codec:"name" json:"name"`
	Args    []Value `codec:"args,omitempty" json:"args,omitempty"`
}

// Validate implements Envelope.
func (r *CallRequest) Validate() error {
	if r.Name == "" {
		return Errorf(CodeProtocol, "call request without a name")
	}
	for i, arg := range r.Args {
		if err := arg.Validate(); err != nil {
			return Errorf(CodeProtocol, "argument %d: %s", i, err.(*Error).Message)
		}
	}
	return nil
}

// CallResponse is the host's answer to a CallRequest.
type CallResponse struct {
	Value Value  `codec:"v" json:"v"`
	Error *Error `codec:"e,omitempty" json:"e,omitempty"`
}

// Validate implements Envelope.
func (r *CallResponse) Validate() error {
	if r.Error != nil {
		return r.Error.Validate()
	}
	return r.Value.Validate()
}

// NewContextResponse returns the resource handle of a freshly created context.
type NewContextResponse struct {
	Context uint32 `codec:"ctx" json:"ctx"`
	Error   *Error `codec:"e,omitempty" json:"e,omitempty"`
}

// Validate implements Envelope.
func (r *NewContextResponse) Validate() error {
	if r.Error != nil {
		return r.Error.Validate()
	}
	if r.Context == 0 {
		return Errorf(CodeProtocol, "context handle 0 is reserved")
	}
	return nil
}

// DropContextRequest releases a context resource.
type DropContextRequest struct {
	Context uint32 `codec:"ctx" json:"ctx"`
}

// Validate implements Envelope.
func (r *DropContextRequest) Validate() error {
	return nil
}
