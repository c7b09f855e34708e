package payment

import "time"

// RespStat is the gateway's coarse outcome for a transaction call.
type RespStat string

const (
	StatusApproved RespStat = "A"
	StatusRetry    RespStat = "B"
	StatusDeclined RespStat = "C"
)

// Valid reports whether s is one of the three documented values.
func (s RespStat) Valid() bool {
	return s == StatusApproved || s == StatusRetry || s == StatusDeclined
}

func (s RespStat) String() string {
	switch s {
	case StatusApproved:
		return "Approved"
	case StatusRetry:
		return "Retry"
	case StatusDeclined:
		return "Declined"
	default:
		return "Unknown(" + string(s) + ")"
	}
}

// ----------------- Requests -----------------

// LineItem is one Level 3 line. Values are passed through as given;
// netamnt is not recomputed from quantity and unitcost.
type LineItem struct {
	LineNo      string           `json:"lineno"`
	Description string           `json:"description"`
	Quantity    string           `json:"quantity"`
	UOM         string           `json:"uom"`
	UnitCost    string           `json:"unitcost"`
	NetAmount   string           `json:"netamnt"`
	TaxAmount   string           `json:"taxamnt"`
	DiscAmount  Optional[string] `json:"discamnt,omitzero"`
	UPC         Optional[string] `json:"upc,omitzero"`
}

// AuthorizationRequest is what a caller supplies to Authorize.
// The merchant id is not part of it; the gateway client adds its own.
type AuthorizationRequest struct {
	Amount string `json:"amount"`

	// Card data: a PAN or a CardSecure token.
	Account Optional[string] `json:"account,omitzero"`
	Expiry  Optional[string] `json:"expiry,omitzero"` // MMYY
	CVV2    Optional[string] `json:"cvv2,omitzero"`

	Currency Optional[string] `json:"currency,omitzero"`
	Capture  Optional[string] `json:"capture,omitzero"` // "Y" auth+capture, "N" auth only
	OrderID  Optional[string] `json:"orderid,omitzero"`

	// Level 2
	PONumber  Optional[string] `json:"ponumber,omitzero"`
	TaxAmount Optional[string] `json:"taxamnt,omitzero"`

	// Level 3
	ShipToZip Optional[string] `json:"shiptozip,omitzero"`
	OrderDate Optional[string] `json:"orderdate,omitzero"` // YYYYMMDD
	Items     []LineItem       `json:"items,omitempty"`

	Name    Optional[string] `json:"name,omitzero"`
	Address Optional[string] `json:"address,omitzero"`
	City    Optional[string] `json:"city,omitzero"`
	Region  Optional[string] `json:"region,omitzero"`
	Postal  Optional[string] `json:"postal,omitzero"`
	Country Optional[string] `json:"country,omitzero"`
	Email   Optional[string] `json:"email,omitzero"`
	Phone   Optional[string] `json:"phone,omitzero"`
}

type authorizationPayload struct {
	MerchID string `json:"merchid"`
	AuthorizationRequest
}

type capturePayload struct {
	MerchID string           `json:"merchid"`
	RetRef  string           `json:"retref"`
	Amount  Optional[string] `json:"amount,omitzero"`
}

type voidPayload struct {
	MerchID string `json:"merchid"`
	RetRef  string `json:"retref"`
}

// ----------------- Responses -----------------

type AuthorizationResponse struct {
	RespStat RespStat `json:"respstat"`
	RespCode string   `json:"respcode"`
	RespText string   `json:"resptext"`
	RespProc string   `json:"respproc"`
	RetRef   string   `json:"retref"`
	Account  string   `json:"account"`
	Token    string   `json:"token"`
	Amount   string   `json:"amount"`
	MerchID  string   `json:"merchid"`
	AuthCode string   `json:"authcode,omitempty"`
	CVVResp  string   `json:"cvvresp,omitempty"`
	AVSResp  string   `json:"avsresp,omitempty"`
	CommCard string   `json:"commcard,omitempty"`
	EMVResp  string   `json:"emvresp,omitempty"`
}

func (r *AuthorizationResponse) Approved() bool { return r.RespStat == StatusApproved }

type CaptureResponse struct {
	RespStat RespStat `json:"respstat"`
	RespCode string   `json:"respcode"`
	RespText string   `json:"resptext"`
	RetRef   string   `json:"retref"`
	Amount   string   `json:"amount"`
	MerchID  string   `json:"merchid"`
	SetlStat string   `json:"setlstat"`
}

func (r *CaptureResponse) Approved() bool { return r.RespStat == StatusApproved }

type VoidResponse struct {
	RespStat RespStat `json:"respstat"`
	RespCode string   `json:"respcode"`
	RespText string   `json:"resptext"`
	RetRef   string   `json:"retref"`
	Amount   string   `json:"amount"`
	MerchID  string   `json:"merchid"`
	AuthCode string   `json:"authcode"`
}

func (r *VoidResponse) Approved() bool { return r.RespStat == StatusApproved }

type InquireResponse struct {
	RespStat    RespStat `json:"respstat"`
	RespCode    string   `json:"respcode"`
	RespText    string   `json:"resptext"`
	RetRef      string   `json:"retref"`
	Account     string   `json:"account"`
	Amount      string   `json:"amount"`
	MerchID     string   `json:"merchid"`
	SetlStat    string   `json:"setlstat"`
	CaptureDate string   `json:"capturedate,omitempty"`
	Voidable    string   `json:"voidable,omitempty"`
	Refundable  string   `json:"refundable,omitempty"`
}

func (r *InquireResponse) Approved() bool { return r.RespStat == StatusApproved }

// IsVoidable reads the gateway's voidable flag ("Y"/"N").
func (r *InquireResponse) IsVoidable() bool { return r.Voidable == "Y" }

// IsRefundable reads the gateway's refundable flag ("Y"/"N").
func (r *InquireResponse) IsRefundable() bool { return r.Refundable == "Y" }

// ----------------- Observer events -----------------

type RequestEvent struct {
	Op     string
	Method string
	URL    string
	Body   []byte
}

type ResponseEvent struct {
	Op         string
	Method     string
	URL        string
	StatusCode int // 0 when no response arrived
	Body       []byte
	Duration   time.Duration
	Err        error
}
