/**
 * @description
 * Data bundle catalog models. Bundles are the products sold by the platform:
 * a network, a display name, a price set by the admin, and the plan code the
 * VTU provider uses to identify the plan.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Networks supported by the VTU provider.
var Networks = []string{"MTN", "Airtel", "Glo", "9mobile"}

// DataBundle is a purchasable data plan. The PlanCode field is forwarded to
// the VTU provider verbatim, so it can be retargeted per provider without
// touching purchase logic.
type DataBundle struct {
	ID        uuid.UUID `json:"id"`
	Network   string    `json:"network"`
	Name      string    `json:"name"`     // e.g. "1GB"
	Size      string    `json:"size"`     // e.g. "1024MB", display only
	Validity  string    `json:"validity"` // e.g. "30 days"
	Price     int64     `json:"price"`    // in kobo
	PlanCode  string    `json:"plan_code"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Label renders the bundle descriptor recorded on purchase transactions.
func (b *DataBundle) Label() string {
	return b.Name + " - " + b.Validity
}

// BundleUpsertRequest is the DTO for admin bundle create/update calls.
type BundleUpsertRequest struct {
	Network  string `json:"network"`
	Name     string `json:"name"`
	Size     string `json:"size"`
	Validity string `json:"validity"`
	Price    int64  `json:"price"` // in kobo
	PlanCode string `json:"plan_code"`
	IsActive *bool  `json:"is_active,omitempty"`
}

// ValidNetwork reports whether network names one of the supported carriers.
func ValidNetwork(network string) bool {
	for _, n := range Networks {
		if n == network {
			return true
		}
	}
	return false
}
