// Package payment implements the Robokassa payment gateway contract:
// signed payment URLs plus verification of the two callback signatures.
// See https://docs.robokassa.ru/ for the wire format.
package payment

import (
	"crypto/sha256"
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"telegram-classifieds-bot/internal/config"
)

const robokassaURL = "https://auth.robokassa.ru/Merchant/Index.aspx"

// Robokassa builds payment URLs with Password1 and verifies callbacks:
// the server-to-server Result URL is signed with Password2, the user-facing
// Success redirect with Password1.
type Robokassa struct {
	merchantLogin string
	password1     string
	password2     string
	testMode      bool
}

func NewRobokassa(cfg config.RobokassaConfig) *Robokassa {
	return &Robokassa{
		merchantLogin: cfg.MerchantLogin,
		password1:     cfg.Password1,
		password2:     cfg.Password2,
		testMode:      cfg.TestMode,
	}
}

func sha256hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", sum)
}

// PaymentURL returns the checkout link for one invoice. The user id rides
// along as a Shp_ parameter and is part of the signature.
func (r *Robokassa) PaymentURL(amount decimal.Decimal, invID int64, description string, userID int64) string {
	outSum := amount.StringFixed(2)
	signature := sha256hex(fmt.Sprintf("%s:%s:%d:%s:Shp_user_id=%d",
		r.merchantLogin, outSum, invID, r.password1, userID))

	params := url.Values{}
	params.Set("MerchantLogin", r.merchantLogin)
	params.Set("OutSum", outSum)
	params.Set("InvId", fmt.Sprintf("%d", invID))
	params.Set("Description", description)
	params.Set("SignatureValue", signature)
	params.Set("Shp_user_id", fmt.Sprintf("%d", userID))
	params.Set("Culture", "ru")
	params.Set("Encoding", "utf-8")
	if r.testMode {
		params.Set("IsTest", "1")
	}
	return robokassaURL + "?" + params.Encode()
}

// VerifyResultSignature checks the asynchronous payment notification,
// signed OutSum:InvId:Password2:Shp_user_id.
func (r *Robokassa) VerifyResultSignature(outSum, invID, signature, shpUserID string) bool {
	expected := sha256hex(fmt.Sprintf("%s:%s:%s:Shp_user_id=%s", outSum, invID, r.password2, shpUserID))
	return strings.EqualFold(signature, expected)
}

// VerifySuccessSignature checks the browser redirect after payment,
// signed OutSum:InvId:Password1:Shp_user_id.
func (r *Robokassa) VerifySuccessSignature(outSum, invID, signature, shpUserID string) bool {
	expected := sha256hex(fmt.Sprintf("%s:%s:%s:Shp_user_id=%s", outSum, invID, r.password1, shpUserID))
	return strings.EqualFold(signature, expected)
}

// ParseAmount reads a Robokassa OutSum, tolerating a comma decimal separator.
func ParseAmount(outSum string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.ReplaceAll(outSum, ",", "."))
}
