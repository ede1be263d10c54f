package merchantware

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/kevin07696/tsys-connector/internal/domain/models"
	"github.com/shopspring/decimal"
)

const (
	soapEnvelopeNS = "http://www.w3.org/2003/05/soap-envelope"
	merchantwareNS = "http://schemas.merchantwarehouse.com/merchantware/v45/"

	// SOAP actions sent alongside each envelope
	ActionSale      = merchantwareNS + "Sale"
	ActionBoardCard = merchantwareNS + "BoardCard"

	zeroAmount = "0.00"
)

// BuildSaleEnvelope encodes a Sale request. The instrument picks the
// PaymentData shape: Vault for stored tokens, Keyed for raw card fields.
func BuildSaleEnvelope(creds models.MerchantCredentials, instrument models.PaymentInstrument, amount decimal.Decimal, invoice string) (string, error) {
	if err := instrument.Validate(); err != nil {
		return "", fmt.Errorf("build sale envelope: %w", err)
	}
	if !amount.IsPositive() {
		return "", fmt.Errorf("build sale envelope: amount must be positive")
	}
	if err := models.ValidateInvoiceNumber(invoice); err != nil {
		return "", fmt.Errorf("build sale envelope: %w", err)
	}

	var b strings.Builder
	b.Grow(1024)
	openEnvelope(&b, "Sale")
	writeCredentials(&b, creds)

	b.WriteString("<PaymentData>")
	if instrument.IsVault() {
		writeElement(&b, "Source", "Vault")
		writeElement(&b, "VaultToken", instrument.VaultToken)
	} else {
		card := instrument.Card
		writeElement(&b, "Source", "Keyed")
		writeElement(&b, "CardNumber", card.Number)
		writeElement(&b, "ExpirationDate", card.ExpirationMMYY())
		writeElement(&b, "CardHolder", card.HolderName)
		writeElement(&b, "AvsStreetAddress", card.AVSStreet)
		writeElement(&b, "AvsZipCode", card.AVSZip)
		writeElement(&b, "CardVerificationValue", card.CVV)
	}
	b.WriteString("</PaymentData>")

	b.WriteString("<Request>")
	writeElement(&b, "Amount", amount.StringFixed(2))
	writeElement(&b, "CashbackAmount", zeroAmount)
	writeElement(&b, "SurchargeAmount", zeroAmount)
	writeElement(&b, "TaxAmount", zeroAmount)
	writeElement(&b, "InvoiceNumber", invoice)
	b.WriteString("</Request>")

	closeEnvelope(&b, "Sale")
	return b.String(), nil
}

// BuildBoardCardEnvelope encodes a BoardCard request that turns the token
// from an approved Sale into a reusable vault token.
func BuildBoardCardEnvelope(creds models.MerchantCredentials, token string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return "", fmt.Errorf("build board card envelope: token is required")
	}

	var b strings.Builder
	b.Grow(768)
	openEnvelope(&b, "BoardCard")
	writeCredentials(&b, creds)
	b.WriteString("<PaymentData>")
	writeElement(&b, "Source", "PreviousTransaction")
	writeElement(&b, "Token", token)
	b.WriteString("</PaymentData>")
	closeEnvelope(&b, "BoardCard")
	return b.String(), nil
}

func openEnvelope(b *strings.Builder, operation string) {
	b.WriteString(`<?xml version="1.0" encoding="utf-8"?>`)
	b.WriteString(`<soap:Envelope xmlns:soap="` + soapEnvelopeNS + `">`)
	b.WriteString("<soap:Body>")
	b.WriteString("<" + operation + ` xmlns="` + merchantwareNS + `">`)
}

func closeEnvelope(b *strings.Builder, operation string) {
	b.WriteString("</" + operation + ">")
	b.WriteString("</soap:Body>")
	b.WriteString("</soap:Envelope>")
}

func writeCredentials(b *strings.Builder, creds models.MerchantCredentials) {
	b.WriteString("<Credentials>")
	writeElement(b, "MerchantName", creds.MerchantName)
	writeElement(b, "MerchantSiteId", creds.MerchantSiteID)
	writeElement(b, "MerchantKey", creds.MerchantKey)
	b.WriteString("</Credentials>")
}

func writeElement(b *strings.Builder, name, value string) {
	b.WriteString("<" + name + ">")
	b.WriteString(xmlEscape(value))
	b.WriteString("</" + name + ">")
}

func xmlEscape(s string) string {
	var sb strings.Builder
	if err := xml.EscapeText(&sb, []byte(s)); err != nil {
		return ""
	}
	return sb.String()
}
