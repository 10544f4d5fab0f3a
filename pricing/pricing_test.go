package pricing_test

import (
	"errors"
	"testing"

	"github.com/xraph/credits/pricing"
)

func TestComputeBuiltinTables(t *testing.T) {
	reg := pricing.Default()

	tests := []struct {
		name string
		req  pricing.Request
		cost int64
	}{
		{
			"FluxDevSingleImage",
			pricing.Request{Provider: "flux", Operation: "image.generate", Model: "flux-dev"},
			8,
		},
		{
			"FluxProFourImages",
			pricing.Request{Provider: "flux", Operation: "image.generate", Model: "flux-pro", Quantity: 4},
			100,
		},
		{
			"GptImageDefaultQuality",
			pricing.Request{Provider: "gpt-image", Operation: "image.generate", Model: "gpt-image-1"},
			35,
		},
		{
			"GptImageHighQuality",
			pricing.Request{
				Provider: "gpt-image", Operation: "image.generate", Model: "gpt-image-1",
				Params: map[string]string{"quality": "high"},
			},
			140,
		},
		{
			"SoraTenSeconds",
			pricing.Request{Provider: "sora", Operation: "video.generate", Model: "sora-2", Quantity: 10},
			1000,
		},
		{
			"SoraProWideResolution",
			pricing.Request{
				Provider: "sora", Operation: "video.generate", Model: "sora-2-pro", Quantity: 2,
				Params: map[string]string{"resolution": "1792x1024"},
			},
			1000,
		},
		{
			"ChatLargeTokenBlocks",
			pricing.Request{Provider: "chat", Operation: "chat.completion", Model: "chat-large", Quantity: 12},
			48,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := reg.Compute(tt.req)
			if err != nil {
				t.Fatalf("compute: %v", err)
			}
			if q.Cost != tt.cost {
				t.Errorf("cost = %d, want %d", q.Cost, tt.cost)
			}
			if q.Version == "" {
				t.Error("quote should carry a pricing version")
			}
		})
	}
}

func TestComputeIsPure(t *testing.T) {
	reg := pricing.Default()
	req := pricing.Request{Provider: "flux", Operation: "image.generate", Model: "flux-pro", Quantity: 2}

	first, err := reg.Compute(req)
	if err != nil {
		t.Fatal(err)
	}
	second, err := reg.Compute(req)
	if err != nil {
		t.Fatal(err)
	}
	if first.Cost != second.Cost || first.Version != second.Version {
		t.Errorf("pricing not pure: %+v vs %+v", first, second)
	}
}

func TestUnsupportedModel(t *testing.T) {
	reg := pricing.Default()

	tests := []struct {
		name string
		req  pricing.Request
	}{
		{"UnknownProvider", pricing.Request{Provider: "midjourney", Model: "v7"}},
		{"UnknownModel", pricing.Request{Provider: "flux", Model: "flux-ultra-mega"}},
		{"UnknownQuality", pricing.Request{
			Provider: "gpt-image", Model: "gpt-image-1",
			Params: map[string]string{"quality": "extreme"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := reg.Compute(tt.req)
			if !errors.Is(err, pricing.ErrUnsupportedModel) {
				t.Fatalf("expected ErrUnsupportedModel, got %v", err)
			}

			var ue *pricing.UnsupportedModelError
			if !errors.As(err, &ue) {
				t.Fatal("expected *UnsupportedModelError")
			}
		})
	}
}

func TestReasonTag(t *testing.T) {
	req := pricing.Request{Provider: "sora", Operation: "video.generate", Model: "sora-2"}
	if got := req.Reason(); got != "sora.video.generate" {
		t.Errorf("reason = %q", got)
	}
}
