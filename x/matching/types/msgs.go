package types

import (
	"context"

	"cosmossdk.io/math"
)

// Message type names
const (
	TypeMsgRegisterResource    = "register_resource"
	TypeMsgSetResourceActive   = "set_resource_active"
	TypeMsgUpdateResourcePrice = "update_resource_price"
	TypeMsgSubmitRequest       = "submit_request"
	TypeMsgMatchRequest        = "match_request"
	TypeMsgAutoMatch           = "auto_match"
	TypeMsgStartComputation    = "start_computation"
	TypeMsgCompleteComputation = "complete_computation"
	TypeMsgCancelRequest       = "cancel_request"
	TypeMsgUpdateParams        = "update_params"
)

// Msg is one state-changing operation. The signer must be proven by the
// configured IdentityVerifier before the operation runs.
type Msg interface {
	Type() string
	GetSigner() Identity
	ValidateBasic() error
}

var (
	_ Msg = &MsgRegisterResource{}
	_ Msg = &MsgSetResourceActive{}
	_ Msg = &MsgUpdateResourcePrice{}
	_ Msg = &MsgSubmitRequest{}
	_ Msg = &MsgMatchRequest{}
	_ Msg = &MsgAutoMatch{}
	_ Msg = &MsgStartComputation{}
	_ Msg = &MsgCompleteComputation{}
	_ Msg = &MsgCancelRequest{}
	_ Msg = &MsgUpdateParams{}
)

func validateSigner(id Identity, role string) error {
	if err := id.Validate(role); err != nil {
		return ErrInvalidMessage.Wrap(err.Error())
	}
	return nil
}

func validateID(id uint64, kind string) error {
	if id == 0 {
		return ErrInvalidMessage.Wrapf("%s id cannot be zero", kind)
	}
	return nil
}

// MsgRegisterResource registers a new resource offer.
type MsgRegisterResource struct {
	Provider     Identity    `json:"provider"`
	ResourceType string      `json:"resource_type"`
	Spec         ComputeSpec `json:"spec"`
	PricePerUnit uint64      `json:"price_per_unit"`
	Location     string      `json:"location"`
}

func (m *MsgRegisterResource) Type() string         { return TypeMsgRegisterResource }
func (m *MsgRegisterResource) GetSigner() Identity { return m.Provider }

// ValidateBasic does a sanity check on the provided data.
func (m *MsgRegisterResource) ValidateBasic() error {
	return Resource{
		Provider:     m.Provider,
		ResourceType: m.ResourceType,
		Spec:         m.Spec,
		PricePerUnit: m.PricePerUnit,
		Location:     m.Location,
	}.ValidateBasic()
}

type MsgRegisterResourceResponse struct {
	ResourceId uint64 `json:"resource_id"`
}

// MsgSetResourceActive toggles whether a resource accepts new matches.
type MsgSetResourceActive struct {
	Provider   Identity `json:"provider"`
	ResourceId uint64   `json:"resource_id"`
	Active     bool     `json:"active"`
}

func (m *MsgSetResourceActive) Type() string         { return TypeMsgSetResourceActive }
func (m *MsgSetResourceActive) GetSigner() Identity { return m.Provider }

func (m *MsgSetResourceActive) ValidateBasic() error {
	if err := validateSigner(m.Provider, "provider"); err != nil {
		return err
	}
	return validateID(m.ResourceId, "resource")
}

type MsgSetResourceActiveResponse struct{}

// MsgUpdateResourcePrice changes the price of a resource.
type MsgUpdateResourcePrice struct {
	Provider     Identity `json:"provider"`
	ResourceId   uint64   `json:"resource_id"`
	PricePerUnit uint64   `json:"price_per_unit"`
}

func (m *MsgUpdateResourcePrice) Type() string         { return TypeMsgUpdateResourcePrice }
func (m *MsgUpdateResourcePrice) GetSigner() Identity { return m.Provider }

func (m *MsgUpdateResourcePrice) ValidateBasic() error {
	if err := validateSigner(m.Provider, "provider"); err != nil {
		return err
	}
	return validateID(m.ResourceId, "resource")
}

type MsgUpdateResourcePriceResponse struct{}

// MsgSubmitRequest queues a new computation request.
type MsgSubmitRequest struct {
	Requester         Identity    `json:"requester"`
	ComputationType   string      `json:"computation_type"`
	Spec              ComputeSpec `json:"spec"`
	MaxPricePerUnit   uint64      `json:"max_price_per_unit"`
	PreferredLocation string      `json:"preferred_location,omitempty"`
	StrictLocation    bool        `json:"strict_location,omitempty"`
	MinReputation     int64       `json:"min_reputation"`
	DurationEstimate  uint64      `json:"duration_estimate,omitempty"`
}

func (m *MsgSubmitRequest) Type() string         { return TypeMsgSubmitRequest }
func (m *MsgSubmitRequest) GetSigner() Identity { return m.Requester }

func (m *MsgSubmitRequest) ValidateBasic() error {
	return m.ToRequest().ValidateBasic()
}

// ToRequest converts the message into an unsaved pending request.
func (m *MsgSubmitRequest) ToRequest() Request {
	return Request{
		Requester:         m.Requester,
		ComputationType:   m.ComputationType,
		Spec:              m.Spec,
		MaxPricePerUnit:   m.MaxPricePerUnit,
		PreferredLocation: m.PreferredLocation,
		StrictLocation:    m.StrictLocation,
		MinReputation:     m.MinReputation,
		DurationEstimate:  m.DurationEstimate,
		Status:            RequestStatusPending,
	}
}

type MsgSubmitRequestResponse struct {
	RequestId uint64 `json:"request_id"`
}

// MsgMatchRequest binds a pending request to a named resource.
type MsgMatchRequest struct {
	Matcher    Identity `json:"matcher"`
	RequestId  uint64   `json:"request_id"`
	ResourceId uint64   `json:"resource_id"`
}

func (m *MsgMatchRequest) Type() string         { return TypeMsgMatchRequest }
func (m *MsgMatchRequest) GetSigner() Identity { return m.Matcher }

func (m *MsgMatchRequest) ValidateBasic() error {
	if err := validateSigner(m.Matcher, "matcher"); err != nil {
		return err
	}
	if err := validateID(m.RequestId, "request"); err != nil {
		return err
	}
	return validateID(m.ResourceId, "resource")
}

type MsgMatchRequestResponse struct {
	RequestId     uint64 `json:"request_id"`
	ResourceId    uint64 `json:"resource_id"`
	ActiveMatches uint64 `json:"active_matches"`
}

// MsgAutoMatch selects the best resource for a request and matches it.
type MsgAutoMatch struct {
	Matcher   Identity `json:"matcher"`
	RequestId uint64   `json:"request_id"`
}

func (m *MsgAutoMatch) Type() string         { return TypeMsgAutoMatch }
func (m *MsgAutoMatch) GetSigner() Identity { return m.Matcher }

func (m *MsgAutoMatch) ValidateBasic() error {
	if err := validateSigner(m.Matcher, "matcher"); err != nil {
		return err
	}
	return validateID(m.RequestId, "request")
}

// MsgStartComputation marks a matched request as running.
type MsgStartComputation struct {
	Caller    Identity `json:"caller"`
	RequestId uint64   `json:"request_id"`
}

func (m *MsgStartComputation) Type() string         { return TypeMsgStartComputation }
func (m *MsgStartComputation) GetSigner() Identity { return m.Caller }

func (m *MsgStartComputation) ValidateBasic() error {
	if err := validateSigner(m.Caller, "caller"); err != nil {
		return err
	}
	return validateID(m.RequestId, "request")
}

type MsgStartComputationResponse struct{}

// MsgCompleteComputation reports the outcome of a matched request.
type MsgCompleteComputation struct {
	Caller         Identity `json:"caller"`
	RequestId      uint64   `json:"request_id"`
	ResourceId     uint64   `json:"resource_id"`
	ActualDuration uint64   `json:"actual_duration"`
	Success        bool     `json:"success"`
}

func (m *MsgCompleteComputation) Type() string         { return TypeMsgCompleteComputation }
func (m *MsgCompleteComputation) GetSigner() Identity { return m.Caller }

func (m *MsgCompleteComputation) ValidateBasic() error {
	if err := validateSigner(m.Caller, "caller"); err != nil {
		return err
	}
	if err := validateID(m.RequestId, "request"); err != nil {
		return err
	}
	return validateID(m.ResourceId, "resource")
}

type MsgCompleteComputationResponse struct {
	Status         RequestStatus `json:"status"`
	Reputation     int64         `json:"reputation"`
	TotalUsageTime uint64        `json:"total_usage_time"`
	SettledAmount  math.Int      `json:"settled_amount"`
}

// MsgCancelRequest withdraws a request that has not finished.
type MsgCancelRequest struct {
	Caller    Identity `json:"caller"`
	RequestId uint64   `json:"request_id"`
}

func (m *MsgCancelRequest) Type() string         { return TypeMsgCancelRequest }
func (m *MsgCancelRequest) GetSigner() Identity { return m.Caller }

func (m *MsgCancelRequest) ValidateBasic() error {
	if err := validateSigner(m.Caller, "caller"); err != nil {
		return err
	}
	return validateID(m.RequestId, "request")
}

type MsgCancelRequestResponse struct{}

// MsgUpdateParams replaces the module parameters. Authority only.
type MsgUpdateParams struct {
	Authority Identity `json:"authority"`
	Params    Params   `json:"params"`
}

func (m *MsgUpdateParams) Type() string         { return TypeMsgUpdateParams }
func (m *MsgUpdateParams) GetSigner() Identity { return m.Authority }

func (m *MsgUpdateParams) ValidateBasic() error {
	if err := validateSigner(m.Authority, "authority"); err != nil {
		return err
	}
	if err := m.Params.Validate(); err != nil {
		return ErrInvalidParams.Wrap(err.Error())
	}
	return nil
}

type MsgUpdateParamsResponse struct{}

// MsgServer is the server API for matching messages.
type MsgServer interface {
	RegisterResource(context.Context, *MsgRegisterResource) (*MsgRegisterResourceResponse, error)
	SetResourceActive(context.Context, *MsgSetResourceActive) (*MsgSetResourceActiveResponse, error)
	UpdateResourcePrice(context.Context, *MsgUpdateResourcePrice) (*MsgUpdateResourcePriceResponse, error)
	SubmitRequest(context.Context, *MsgSubmitRequest) (*MsgSubmitRequestResponse, error)
	MatchRequest(context.Context, *MsgMatchRequest) (*MsgMatchRequestResponse, error)
	AutoMatch(context.Context, *MsgAutoMatch) (*MsgMatchRequestResponse, error)
	StartComputation(context.Context, *MsgStartComputation) (*MsgStartComputationResponse, error)
	CompleteComputation(context.Context, *MsgCompleteComputation) (*MsgCompleteComputationResponse, error)
	CancelRequest(context.Context, *MsgCancelRequest) (*MsgCancelRequestResponse, error)
	UpdateParams(context.Context, *MsgUpdateParams) (*MsgUpdateParamsResponse, error)
}
