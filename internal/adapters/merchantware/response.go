package merchantware

import (
	"encoding/xml"
	"regexp"
	"strconv"
	"strings"

	"github.com/kevin07696/tsys-connector/internal/domain"
	"github.com/kevin07696/tsys-connector/internal/domain/models"
)

// approvedStatus is the only ApprovalStatus value that counts as approval.
const approvedStatus = "APPROVED"

// The gateway answers under SOAP-ENV: on some endpoints and soap: on others.
// Only element names are matched; text content keeps its prefixes.
var envelopePrefix = regexp.MustCompile(`(</?)(?i:SOAP-ENV|SOAP):`)

type soapEnvelope struct {
	XMLName xml.Name  `xml:"Envelope"`
	Body    *soapBody `xml:"Body"`
}

type soapBody struct {
	SaleResponse      *saleResponse      `xml:"SaleResponse"`
	BoardCardResponse *boardCardResponse `xml:"BoardCardResponse"`
	Fault             *soapFault         `xml:"Fault"`
}

type saleResponse struct {
	Result *saleResult `xml:"SaleResult"`
}

type saleResult struct {
	ApprovalStatus    *string `xml:"ApprovalStatus"`
	Token             string  `xml:"Token"`
	AuthorizationCode string  `xml:"AuthorizationCode"`
	CardNumber        string  `xml:"CardNumber"`
	AccountNumber     string  `xml:"AccountNumber"`
	CardType          string  `xml:"CardType"`
	ErrorMessage      string  `xml:"ErrorMessage"`
}

type boardCardResponse struct {
	Result *boardCardResult `xml:"BoardCardResult"`
}

type boardCardResult struct {
	VaultToken   string `xml:"VaultToken"`
	ErrorMessage string `xml:"ErrorMessage"`
}

// soapFault covers both SOAP 1.2 (Code/Reason) and SOAP 1.1 (faultcode/faultstring).
type soapFault struct {
	Code        string `xml:"Code>Value"`
	Reason      string `xml:"Reason>Text"`
	FaultCode   string `xml:"faultcode"`
	FaultString string `xml:"faultstring"`
}

func (f *soapFault) describe() string {
	code := firstNonEmpty(f.Code, f.FaultCode)
	reason := firstNonEmpty(f.Reason, f.FaultString)
	switch {
	case code != "" && reason != "":
		return code + ": " + reason
	case reason != "":
		return reason
	default:
		return code
	}
}

// normalizeEnvelope strips the SOAP-ENV: and SOAP: element prefixes.
func normalizeEnvelope(raw []byte) []byte {
	return envelopePrefix.ReplaceAll(raw, []byte("$1"))
}

func decodeEnvelope(raw []byte) (*soapBody, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, domain.NewDomainError(domain.ErrorCodeGatewayProtocol, "empty gateway response")
	}

	var env soapEnvelope
	if err := xml.Unmarshal(normalizeEnvelope(raw), &env); err != nil {
		return nil, domain.WrapError(domain.ErrorCodeGatewayProtocol, "malformed gateway response", err)
	}
	if env.Body == nil {
		return nil, domain.NewDomainError(domain.ErrorCodeGatewayProtocol, "gateway response has no Body")
	}
	return env.Body, nil
}

// ParseSaleResponse decodes a Sale response. Approval requires the exact
// literal APPROVED. A SOAP Fault is returned as an Error result; a missing
// SaleResult is a protocol error.
func ParseSaleResponse(raw []byte) (*models.SaleResult, error) {
	body, err := decodeEnvelope(raw)
	if err != nil {
		return nil, err
	}

	if body.Fault != nil {
		fault := body.Fault.describe()
		return &models.SaleResult{
			ApprovalStatus: models.ApprovalError,
			ErrorMessage:   firstNonEmpty(body.Fault.Reason, body.Fault.FaultString),
			RawFault:       fault,
		}, nil
	}

	if body.SaleResponse == nil || body.SaleResponse.Result == nil {
		return nil, domain.NewDomainError(domain.ErrorCodeGatewayProtocol, "gateway response has no SaleResult")
	}

	r := body.SaleResponse.Result
	result := &models.SaleResult{
		VaultToken:        strings.TrimSpace(r.Token),
		AuthorizationCode: strings.TrimSpace(r.AuthorizationCode),
		MaskedCardNumber:  MaskPAN(strings.TrimSpace(firstNonEmpty(r.CardNumber, r.AccountNumber))),
		CardTypeCode:      parseCardType(r.CardType),
		ErrorMessage:      strings.TrimSpace(r.ErrorMessage),
	}

	switch {
	case r.ApprovalStatus == nil || *r.ApprovalStatus == "":
		result.ApprovalStatus = models.ApprovalError
	case *r.ApprovalStatus == approvedStatus:
		result.ApprovalStatus = models.ApprovalApproved
		result.StatusText = *r.ApprovalStatus
	default:
		result.ApprovalStatus = models.ApprovalDeclined
		result.StatusText = *r.ApprovalStatus
	}

	return result, nil
}

// ParseBoardCardResponse decodes a BoardCard response.
func ParseBoardCardResponse(raw []byte) (*models.BoardCardResult, error) {
	body, err := decodeEnvelope(raw)
	if err != nil {
		return nil, err
	}

	if body.Fault != nil {
		return &models.BoardCardResult{ErrorMessage: body.Fault.describe()}, nil
	}

	if body.BoardCardResponse == nil || body.BoardCardResponse.Result == nil {
		return nil, domain.NewDomainError(domain.ErrorCodeGatewayProtocol, "gateway response has no BoardCardResult")
	}

	r := body.BoardCardResponse.Result
	return &models.BoardCardResult{
		VaultToken:   strings.TrimSpace(r.VaultToken),
		ErrorMessage: strings.TrimSpace(r.ErrorMessage),
	}, nil
}

// MaskPAN keeps the last four characters of a card number.
func MaskPAN(pan string) string {
	runes := []rune(pan)
	if len(runes) <= 4 {
		return pan
	}
	return string(runes[len(runes)-4:])
}

// parseCardType returns nil for an absent or non-numeric code.
func parseCardType(raw string) *int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	code, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	return &code
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
