package domain

import "time"

// Installment is a payment plan split into TotalInstallments parcels.
type Installment struct {
	ID                 string           `json:"id"`
	TaxID              string           `json:"taxId"`
	ClientID           string           `json:"clientId"`
	Description        string           `json:"description"`
	CurrentInstallment int              `json:"currentInstallment"`
	TotalInstallments  int              `json:"totalInstallments"`
	FirstDueDate       time.Time        `json:"firstDueDate"`
	RecurrenceRule     RecurrenceRule   `json:"recurrenceRule"`
	WeekendAdjust      WeekendAdjust    `json:"weekendAdjust"`
	AssignedTo         string           `json:"assignedTo,omitempty"`
	Status             ObligationStatus `json:"status"`
	Notes              string           `json:"notes,omitempty"`
	CreatedAt          time.Time        `json:"createdAt"`
	UpdatedAt          time.Time        `json:"updatedAt"`
}

func (i *Installment) Remaining() int {
	if r := i.TotalInstallments - i.CurrentInstallment; r > 0 {
		return r
	}
	return 0
}

func (i *Installment) IsFinished() bool {
	return i.TotalInstallments > 0 && i.CurrentInstallment >= i.TotalInstallments
}
