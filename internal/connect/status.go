package connect

import (
	"github.com/stripe/stripe-go/v84"
)

// AccountStatus is the reconciled activation snapshot of a connected
// account. Both the webhook push path and the pull path produce it through
// ReconcileAccountStatus, so the two paths can never disagree.
type AccountStatus struct {
	AccountID        string   `json:"account_id"`
	ChargesEnabled   bool     `json:"charges_enabled"`
	DetailsSubmitted bool     `json:"details_submitted"`
	RequirementsDue  []string `json:"requirements_due"`
	FullyActive      bool     `json:"fully_active"`
}

// ReconcileAccountStatus derives the activation status from a raw gateway
// account snapshot. Pure: no I/O, no clock, same input same output.
func ReconcileAccountStatus(acct *stripe.Account) AccountStatus {
	if acct == nil {
		return AccountStatus{RequirementsDue: []string{}}
	}

	due := []string{}
	if acct.Requirements != nil && acct.Requirements.CurrentlyDue != nil {
		due = append(due, acct.Requirements.CurrentlyDue...)
	}

	return AccountStatus{
		AccountID:        acct.ID,
		ChargesEnabled:   acct.ChargesEnabled,
		DetailsSubmitted: acct.DetailsSubmitted,
		RequirementsDue:  due,
		FullyActive:      acct.ChargesEnabled && acct.DetailsSubmitted && len(due) == 0,
	}
}
