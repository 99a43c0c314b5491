package api

import (
	"bytes"
	"encoding/json"
	"reflect"
	"regexp"
	"strings"
	"time"

	"fund-transfer/pkg/ledger"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var amountPattern = regexp.MustCompile(`^\d+(\.\d{1,2})?$`)

// Amount accepts a JSON string or number and keeps its literal text so that
// the decimal-places rule sees what the client sent.
type Amount string

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Amount(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*a = Amount(n.String())
	return nil
}

func (a Amount) Decimal() (decimal.Decimal, error) {
	return decimal.NewFromString(string(a))
}

// TransferRequest is the body of POST /api/v1/transfers.
type TransferRequest struct {
	SourceAccountNumber      string `json:"sourceAccountNumber" validate:"required,min=10,max=20"`
	DestinationAccountNumber string `json:"destinationAccountNumber" validate:"required,min=10,max=20"`
	Amount                   Amount `json:"amount" validate:"required,amount"`
	Description              string `json:"description" validate:"max=500"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// Registration only fails for an empty tag or nil func.
	_ = v.RegisterValidation("amount", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if !amountPattern.MatchString(s) {
			return false
		}
		d, err := decimal.NewFromString(s)
		return err == nil && d.IsPositive()
	})
	return v
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "min":
		return fe.Field() + " must be at least " + fe.Param() + " characters"
	case "max":
		return fe.Field() + " must be at most " + fe.Param() + " characters"
	case "amount":
		return "Amount must be a positive decimal with up to 2 decimal places"
	default:
		return fe.Field() + " is invalid"
	}
}

const timeLayout = time.RFC3339

type TransferResponse struct {
	ReferenceNumber          string  `json:"referenceNumber"`
	Status                   string  `json:"status"`
	SourceAccountNumber      string  `json:"sourceAccountNumber"`
	DestinationAccountNumber string  `json:"destinationAccountNumber"`
	Amount                   string  `json:"amount"`
	Currency                 string  `json:"currency"`
	Description              *string `json:"description"`
	FailureReason            string  `json:"failureReason,omitempty"`
	CreatedAt                string  `json:"createdAt"`
	CompletedAt              *string `json:"completedAt"`
}

func newTransferResponse(t *ledger.Transaction) TransferResponse {
	r := TransferResponse{
		ReferenceNumber:          t.ReferenceNumber,
		Status:                   string(t.Status),
		SourceAccountNumber:      t.SourceAccountNumber,
		DestinationAccountNumber: t.DestinationAccountNumber,
		Amount:                   ledger.FormatAmount(t.Amount),
		Currency:                 t.Currency,
		FailureReason:            t.FailureReason,
		CreatedAt:                t.CreatedAt.UTC().Format(timeLayout),
	}
	if t.Description != "" {
		d := t.Description
		r.Description = &d
	}
	if t.CompletedAt != nil {
		c := t.CompletedAt.UTC().Format(timeLayout)
		r.CompletedAt = &c
	}
	return r
}

type AccountResponse struct {
	AccountNumber string `json:"accountNumber"`
	HolderName    string `json:"holderName"`
	Balance       string `json:"balance"`
	Currency      string `json:"currency"`
	Status        string `json:"status"`
	CreatedAt     string `json:"createdAt"`
}

func newAccountResponse(a *ledger.Account) AccountResponse {
	return AccountResponse{
		AccountNumber: a.AccountNumber,
		HolderName:    a.HolderName,
		Balance:       ledger.FormatAmount(a.Balance),
		Currency:      a.Currency,
		Status:        string(a.Status),
		CreatedAt:     a.CreatedAt.UTC().Format(timeLayout),
	}
}

type BalanceResponse struct {
	AccountNumber string `json:"accountNumber"`
	Balance       string `json:"balance"`
}
