package types

import (
	"fmt"
	"strings"

	"github.com/kharido-labs/kharido-backend/pkg/enums"
)

// PayoutDestination holds the method-specific account details of a withdrawal,
// stored as jsonb on the request. Exactly one group of fields is populated
// depending on the payout method.
type PayoutDestination struct {
	AccountHolder *string `json:"account_holder,omitempty"`
	AccountNumber *string `json:"account_number,omitempty"`
	IFSCCode      *string `json:"ifsc_code,omitempty"`
	BankName      *string `json:"bank_name,omitempty"`
	UPIID         *string `json:"upi_id,omitempty"`
	WalletNumber  *string `json:"wallet_number,omitempty"`
}

// ValidateFor checks that the destination carries the identifiers the payout
// method needs before the request may be created.
func (d PayoutDestination) ValidateFor(method enums.PayoutMethod) error {
	switch method {
	case enums.PayoutMethodBankTransfer:
		if blank(d.AccountNumber) {
			return fmt.Errorf("bank transfer: account number required")
		}
		if blank(d.IFSCCode) {
			return fmt.Errorf("bank transfer: IFSC code required")
		}
		return nil
	case enums.PayoutMethodUPI:
		if blank(d.UPIID) {
			return fmt.Errorf("upi: UPI id required")
		}
		return nil
	case enums.PayoutMethodWalletApp:
		if blank(d.WalletNumber) {
			return fmt.Errorf("wallet app: wallet or mobile number required")
		}
		return nil
	default:
		return fmt.Errorf("unsupported payout method %q", method)
	}
}

func blank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}
