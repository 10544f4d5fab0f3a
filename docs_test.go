package credits_test

import (
	"context"
	"log"
	"testing"

	"github.com/xraph/credits"
	"github.com/xraph/credits/pricing"
	"github.com/xraph/credits/store/memory"
)

// TestDocumentationExamples verifies that all examples in the documentation compile
func TestDocumentationExamples(t *testing.T) {
	// Test Quick Start example from README
	t.Run("QuickStartExample", func(t *testing.T) {
		// Create store (memory for demo, use PostgreSQL in production)
		store := memory.New()

		// Initialize the engine
		e := credits.New(store)

		ctx := context.Background()
		if err := e.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer e.Stop()

		// Price the request and check the balance covers it
		auth, err := e.PreAuthorize(ctx, "user_123", pricing.Request{
			Provider:  "flux",
			Operation: "image.generate",
			Model:     "flux-pro",
			Quantity:  2,
		})
		if err != nil {
			if credits.IsPaymentError(err) {
				log.Println("ask the user to upgrade or top up")
				return
			}
			t.Fatal(err)
		}

		// ... perform the paid generation call ...

		// Record the debit exactly once
		if err := e.Confirm(ctx, auth); err != nil {
			t.Fatal(err)
		}

		balance, err := e.Balance(ctx, "user_123")
		if err != nil {
			t.Fatal(err)
		}
		log.Printf("remaining credits: %d\n", balance)
	})

	// Test support top-up example
	t.Run("TopUpExample", func(t *testing.T) {
		e := credits.New(memory.New())

		ctx := context.Background()
		if err := e.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer e.Stop()

		// Pass the payment reference so retried webhooks apply once
		entry, err := e.TopUp(ctx, "user_123", "stripe_evt_1Abc", 10000, "support.goodwill", nil)
		if err != nil {
			t.Fatal(err)
		}
		log.Printf("granted %d credits as %s\n", entry.Amount, entry.ID)

		// Drift check: the replayed ledger is authoritative
		rec, err := e.Reconcile(ctx, "user_123")
		if err != nil {
			t.Fatal(err)
		}
		if rec.Adjusted {
			log.Printf("cached balance corrected to %d\n", rec.Balance)
		}
	})
}
