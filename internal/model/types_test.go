package model

import "testing"

func testSpec() Spec {
	return Spec{
		ID: "spec-1",
		Modules: []Module{
			{
				Fn: "wc",
				Phi: map[string][]float64{
					"coefficients": {0.5, -0.25},
				},
			},
			{
				Fn: "lvl",
				Phi: map[string][]float64{
					"level": {0.1},
				},
				Prior: map[string]Prior{
					"level": {Distribution: "normal", Mean: []float64{0}, SD: []float64{1}},
				},
			},
		},
		Meta: map[string]string{"origin": "test"},
	}
}

func TestSpecCloneIsDeep(t *testing.T) {
	original := testSpec()
	clone := original.Clone()

	clone.Modules[0].Phi["coefficients"][0] = 99
	clone.Modules[1].Prior["level"].Mean[0] = 42
	clone.Meta["origin"] = "mutated"

	if original.Modules[0].Phi["coefficients"][0] != 0.5 {
		t.Fatalf("clone mutation leaked into original phi")
	}
	if original.Modules[1].Prior["level"].Mean[0] != 0 {
		t.Fatalf("clone mutation leaked into original prior")
	}
	if original.Meta["origin"] != "test" {
		t.Fatalf("clone mutation leaked into original meta")
	}
}

func TestPhiNamesSorted(t *testing.T) {
	m := Module{
		Fn: "fir",
		Phi: map[string][]float64{
			"zeta":         {1},
			"alpha":        {2},
			"coefficients": {3, 4},
		},
	}

	names := m.PhiNames()
	want := []string{"alpha", "coefficients", "zeta"}
	if len(names) != len(want) {
		t.Fatalf("expected %d names, got %d", len(want), len(names))
	}
	for i, name := range want {
		if names[i] != name {
			t.Fatalf("name %d: expected %s, got %s", i, name, names[i])
		}
	}
}

func TestParamCount(t *testing.T) {
	spec := testSpec()
	if got := spec.ParamCount(); got != 3 {
		t.Fatalf("expected 3 parameters, got %d", got)
	}
}

func TestSetMetaAllocatesLazily(t *testing.T) {
	var spec Spec
	spec.SetMeta("fitter", "nelder-mead")
	if spec.Meta["fitter"] != "nelder-mead" {
		t.Fatalf("meta not recorded: %+v", spec.Meta)
	}
}
