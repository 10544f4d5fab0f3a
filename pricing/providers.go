package pricing

import "strconv"

// Built-in provider tables. Costs are credits per provider unit: one
// image for image models, one second of footage for video models, one
// thousand tokens for chat models.

const (
	fluxVersion     = "flux/2025-10-01"
	gptImageVersion = "gpt-image/2025-10-01"
	soraVersion     = "sora/2025-11-15"
	chatVersion     = "chat/2025-09-01"
)

var fluxTable = map[string]int64{
	"flux-dev":       8,
	"flux-pro":       25,
	"flux-pro-ultra": 40,
	"flux-kontext":   30,
}

var chatTable = map[string]int64{
	"chat-small": 1,
	"chat-large": 4,
}

// tablePricer builds a Func from a flat model→unit-cost table.
func tablePricer(provider, version string, table map[string]int64) Func {
	return func(req Request) (Quote, error) {
		unit, ok := table[req.Model]
		if !ok {
			return Quote{}, &UnsupportedModelError{Provider: provider, Model: req.Model}
		}
		return Quote{
			Cost:    unit * req.quantity(),
			Version: version,
			Meta: map[string]string{
				"model":     req.Model,
				"unit_cost": strconv.FormatInt(unit, 10),
			},
		}, nil
	}
}

// gptImagePricer prices per image, scaled by the requested quality.
func gptImagePricer(req Request) (Quote, error) {
	if req.Model != "gpt-image-1" {
		return Quote{}, &UnsupportedModelError{Provider: "gpt-image", Model: req.Model}
	}

	var unit int64
	switch req.Params["quality"] {
	case "", "medium":
		unit = 35
	case "low":
		unit = 12
	case "high":
		unit = 140
	default:
		return Quote{}, &UnsupportedModelError{Provider: "gpt-image", Model: req.Model}
	}

	return Quote{
		Cost:    unit * req.quantity(),
		Version: gptImageVersion,
		Meta: map[string]string{
			"model":     req.Model,
			"quality":   req.Params["quality"],
			"unit_cost": strconv.FormatInt(unit, 10),
		},
	}, nil
}

// soraPricer prices video per second, with a resolution surcharge for
// the pro model.
func soraPricer(req Request) (Quote, error) {
	var unit int64
	switch req.Model {
	case "sora-2":
		unit = 100
	case "sora-2-pro":
		unit = 300
		if req.Params["resolution"] == "1792x1024" {
			unit = 500
		}
	default:
		return Quote{}, &UnsupportedModelError{Provider: "sora", Model: req.Model}
	}

	return Quote{
		Cost:    unit * req.quantity(),
		Version: soraVersion,
		Meta: map[string]string{
			"model":     req.Model,
			"unit_cost": strconv.FormatInt(unit, 10),
		},
	}, nil
}
