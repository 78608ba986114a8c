// Package seed provides the sample marketplace loaded on start-up in development.
package seed

import (
	"time"

	"github.com/odyssey-erp/contractdesk/internal/accounting"
	"github.com/odyssey-erp/contractdesk/internal/contracts"
	"github.com/odyssey-erp/contractdesk/internal/erp"
)

// Sample user ids used by the seeded ledgers.
const (
	UserSteelCorp    = "steel-corp"
	UserAluminum     = "aluminum-solutions"
	UserTechno       = "technoelectronics"
	UserAgriCorp     = "agricorp"
	UserStorageMax   = "storagemax"
	UserMetalWorks   = "metalworks"
	UserAlphaMetals  = "alpha-metals"
	UserTextileMills = "textile-mills"
)

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 9, 0, 0, 0, time.UTC)
}

func ptr[T any](v T) *T { return &v }

// Contracts returns five postings, one per lifecycle situation. Every reservation
// ledger agrees with its cached totals.
func Contracts() []contracts.Contract {
	return []contracts.Contract{
		{
			ID:               "ctr-0001",
			Type:             contracts.TypeSell,
			ItemName:         "Premium Steel Sheets - Industrial Grade",
			HSNCode:          "7208.51",
			Customer:         "MetalWorks Industries",
			PostedBy:         "Steel Corp Ltd",
			PostedByUserID:   UserSteelCorp,
			PostedAt:         day(2025, time.January, 12),
			Description:      "High-grade steel sheets suitable for industrial applications",
			Location:         "Mumbai, Maharashtra",
			Quantity:         2000,
			Rate:             150000,
			DocStatus:        contracts.DocSubmitted,
			SyncStatus:       erp.SyncSynced,
			ExecutionStatus:  contracts.ExecCompleted,
			BuyerVerified:    true,
			SellerVerified:   true,
			InvoiceGenerated: true,
			InvoiceID:        "inv-0001",
			Reservations: map[string]contracts.Reservation{
				UserMetalWorks: {
					UserID:     UserMetalWorks,
					Quantity:   2000,
					ReservedAt: day(2025, time.January, 15),
					InvoiceID:  "inv-0001",
					Status:     contracts.ReservationActive,
				},
			},
		},
		{
			ID:                    "ctr-0002",
			Type:                  contracts.TypeSell,
			ItemName:              "Bulk Aluminum Rods - Split Contract",
			HSNCode:               "7604.10",
			Customer:              "Alpha Metals Corp",
			PostedBy:              "Aluminum Solutions",
			PostedByUserID:        UserAluminum,
			PostedAt:              day(2025, time.January, 10),
			Description:           "Premium aluminum rods for construction and manufacturing",
			Location:              "Delhi, NCR",
			Quantity:              5000,
			Rate:                  400000,
			AllowPartialPurchases: true,
			MinSplitQuantity:      500,
			DocStatus:             contracts.DocSubmitted,
			SyncStatus:            erp.SyncSynced,
			ExecutionStatus:       contracts.ExecReadyForDelivery,
			BuyerVerified:         true,
			InvoiceGenerated:      true,
			InvoiceID:             "inv-0002",
			Reservations: map[string]contracts.Reservation{
				UserAlphaMetals: {
					UserID:     UserAlphaMetals,
					Quantity:   1500,
					ReservedAt: day(2025, time.January, 14),
					InvoiceID:  "inv-0002",
					Status:     contracts.ReservationActive,
				},
			},
		},
		{
			ID:              "ctr-0003",
			Type:            contracts.TypeBuy,
			ItemName:        "Electronic Circuit Boards - Bulk Purchase",
			HSNCode:         "8534.00",
			Customer:        "TechnoElectronics Ltd",
			PostedBy:        "TechnoElectronics Ltd",
			PostedByUserID:  UserTechno,
			PostedAt:        day(2025, time.January, 13),
			Description:     "Looking for high-quality electronic circuit boards",
			Location:        "Bangalore, Karnataka",
			Quantity:        1500,
			Rate:            120000,
			DocStatus:       contracts.DocDraft,
			SyncStatus:      erp.SyncFailed,
			ExecutionStatus: contracts.ExecPending,
		},
		{
			ID:                    "ctr-0004",
			Type:                  contracts.TypeFuture,
			ItemName:              "Future Delivery: Premium Cotton - Split Available",
			HSNCode:               "5201.00",
			Customer:              "Textile Mills Ltd",
			PostedBy:              "AgriCorp Industries",
			PostedByUserID:        UserAgriCorp,
			PostedAt:              day(2025, time.January, 9),
			Description:           "Premium quality cotton for textile manufacturing",
			Location:              "Gujarat, India",
			AvailabilityDate:      ptr(day(2025, time.March, 20)),
			Quantity:              8000,
			Rate:                  640000,
			AllowPartialPurchases: true,
			MinSplitQuantity:      1000,
			DocStatus:             contracts.DocSubmitted,
			SyncStatus:            erp.SyncSynced,
			ExecutionStatus:       contracts.ExecPending,
			InvoiceGenerated:      true,
			InvoiceID:             "inv-0003",
			Reservations: map[string]contracts.Reservation{
				UserTextileMills: {
					UserID:            UserTextileMills,
					Quantity:          3000,
					ReservedAt:        day(2025, time.January, 13),
					InvoiceID:         "inv-0003",
					Status:            contracts.ReservationActive,
					ReservationAmount: 48000,
				},
			},
		},
		{
			ID:              "ctr-0005",
			Type:            contracts.TypeService,
			ItemName:        "Warehouse Storage Solutions - Delhi NCR",
			Customer:        "StorageMax Solutions",
			PostedBy:        "StorageMax Solutions",
			PostedByUserID:  UserStorageMax,
			PostedAt:        day(2025, time.January, 14),
			Description:     "Professional warehouse storage and logistics services",
			Location:        "Delhi, NCR",
			Rate:            28000,
			DocStatus:       contracts.DocDraft,
			SyncStatus:      erp.SyncNotSynced,
			ExecutionStatus: contracts.ExecPending,
		},
	}
}

// Invoices returns the invoices of the three reserved contracts.
func Invoices() []accounting.Invoice {
	return []accounting.Invoice{
		{
			ID:              "inv-0001",
			Number:          "CI-2025-001",
			ContractID:      "ctr-0001",
			ContractTitle:   "Premium Steel Sheets - Industrial Grade",
			ItemName:        "Premium Steel Sheets - Industrial Grade",
			HSNCode:         "7208.51",
			Buyer:           "MetalWorks Industries",
			BuyerUserID:     UserMetalWorks,
			Seller:          "Steel Corp Ltd",
			Quantity:        2000,
			Rate:            75,
			TotalAmount:     150000,
			RemainingAmount: 150000,
			Status:          accounting.StatusVerified,
			CreatedAt:       day(2025, time.January, 15),
			DueDate:         day(2025, time.February, 14),
			BuyerVerified:   true,
			SellerVerified:  true,
			SyncStatus:      erp.SyncSynced,
			PaymentStatus:   accounting.PaymentFullyPaid,
		},
		{
			ID:              "inv-0002",
			Number:          "CI-2025-002",
			ContractID:      "ctr-0002",
			ContractTitle:   "Bulk Aluminum Rods - Split Contract",
			ItemName:        "Bulk Aluminum Rods - Split Contract",
			HSNCode:         "7604.10",
			Buyer:           "Alpha Metals Corp",
			BuyerUserID:     UserAlphaMetals,
			Seller:          "Aluminum Solutions",
			Quantity:        1500,
			Rate:            80,
			TotalAmount:     120000,
			RemainingAmount: 120000,
			Status:          accounting.StatusFinal,
			CreatedAt:       day(2025, time.January, 14),
			DueDate:         day(2025, time.February, 13),
			BuyerVerified:   true,
			SyncStatus:      erp.SyncNotSynced,
			PaymentStatus:   accounting.PaymentAdvancePaid,
		},
		{
			ID:                "inv-0003",
			Number:            "CI-2025-003",
			ContractID:        "ctr-0004",
			ContractTitle:     "Future Delivery: Premium Cotton - Split Available",
			ItemName:          "Future Delivery: Premium Cotton - Split Available",
			HSNCode:           "5201.00",
			Buyer:             "Textile Mills Ltd",
			BuyerUserID:       UserTextileMills,
			Seller:            "AgriCorp Industries",
			Quantity:          3000,
			Rate:              80,
			TotalAmount:       240000,
			ReservationAmount: 48000,
			RemainingAmount:   192000,
			Status:            accounting.StatusFinal,
			CreatedAt:         day(2025, time.January, 13),
			DueDate:           day(2025, time.March, 20),
			SyncStatus:        erp.SyncNotSynced,
			PaymentStatus:     accounting.PaymentAdvancePaid,
		},
	}
}

// Payments returns completed payments consistent with the invoices' payment status.
func Payments() []accounting.Payment {
	return []accounting.Payment{
		{
			ID: "pay-0001", Number: "CP-2025-001", InvoiceID: "inv-0001", ContractID: "ctr-0001",
			Amount: 150000, Type: accounting.TypeFinal, Method: accounting.MethodBankTransfer,
			PaidAt: day(2025, time.January, 20), Status: accounting.PaymentStateCompleted,
			VerifiedByBuyer: true, VerifiedBySeller: true,
		},
		{
			ID: "pay-0002", Number: "CP-2025-002", InvoiceID: "inv-0002", ContractID: "ctr-0002",
			Amount: 24000, Type: accounting.TypePartial, Method: accounting.MethodUPI,
			PaidAt: day(2025, time.January, 14), Status: accounting.PaymentStateCompleted,
			VerifiedByBuyer: true,
		},
		{
			ID: "pay-0003", Number: "CP-2025-003", InvoiceID: "inv-0003", ContractID: "ctr-0004",
			Amount: 48000, Type: accounting.TypeAdvance, Method: accounting.MethodBankTransfer,
			PaidAt: day(2025, time.January, 13), Status: accounting.PaymentStateCompleted,
			VerifiedByBuyer: true,
		},
	}
}

// Parties returns the sample counterparty profiles.
func Parties() []accounting.Party {
	return []accounting.Party{
		{
			ID: "party-0001", Name: "MetalWorks Industries", Company: "MetalWorks Industries",
			Email: "contact@metalworks.com", Phone: "+91 98765 43210", Role: accounting.PartyBuyer,
			TotalContracts: 5, TotalValue: 750000, VerificationScore: 98,
			LastActivity: day(2025, time.January, 15), IsVerified: true,
		},
		{
			ID: "party-0002", Name: "Steel Corp Ltd", Company: "Steel Corp Ltd",
			Email: "sales@steelcorp.com", Phone: "+91 98765 43211", Role: accounting.PartySeller,
			TotalContracts: 8, TotalValue: 1200000, VerificationScore: 95,
			LastActivity: day(2025, time.January, 15), IsVerified: true,
		},
		{
			ID: "party-0003", Name: "Alpha Metals Corp", Company: "Alpha Metals Corp",
			Email: "procurement@alphametals.com", Phone: "+91 98765 43212", Role: accounting.PartyBuyer,
			TotalContracts: 3, TotalValue: 450000, VerificationScore: 92,
			LastActivity: day(2025, time.January, 14), IsVerified: true,
		},
	}
}

// Load seeds both stores.
func Load(contractStore *contracts.Store, accountingStore *accounting.Store) {
	contractStore.Seed(Contracts())
	accountingStore.Seed(Invoices(), Payments(), Parties())
}
