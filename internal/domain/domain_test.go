package domain

import (
	"errors"
	"testing"
)

// --- Step Tests ---

func TestCanonicalSteps(t *testing.T) {
	if len(CanonicalSteps) != 10 {
		t.Fatalf("expected 10 steps, got %d", len(CanonicalSteps))
	}
	if CanonicalSteps[0] != StepStart || CanonicalSteps[9] != StepComplete {
		t.Error("unexpected canonical order")
	}
	for i, s := range CanonicalSteps {
		if s.Index() != i {
			t.Errorf("%s: expected index %d, got %d", s, i, s.Index())
		}
	}
}

func TestStep_Index_Unknown(t *testing.T) {
	if Step("bogus").Index() != -1 {
		t.Error("unknown step should have index -1")
	}
}

func TestParseStep(t *testing.T) {
	s, err := ParseStep("activateLicense")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s != StepActivateLicense {
		t.Errorf("expected activateLicense, got %s", s)
	}

	_, err = ParseStep("activate_license")
	if !errors.Is(err, ErrUnknownStep) {
		t.Errorf("expected ErrUnknownStep, got %v", err)
	}
}

func TestStep_IsTerminal(t *testing.T) {
	for _, s := range CanonicalSteps {
		if s.IsTerminal() != (s == StepComplete) {
			t.Errorf("%s: unexpected IsTerminal", s)
		}
	}
}

// --- Action Tests ---

func TestAction_Step(t *testing.T) {
	if ActionInstallPlugin.Step() != StepInstallDependencies {
		t.Error("install should mark installDependencies")
	}
	if ActionCompleteSetup.Step() != StepComplete {
		t.Error("complete_setup should mark complete")
	}
	if Action("other").Step() != "" {
		t.Error("unknown action should not mark a step")
	}
}

// --- Site Tests ---

func TestSite_MarkStep(t *testing.T) {
	site := &Site{ID: "s1", CurrentStep: StepStart}

	if !site.MarkStep(StepMeta) {
		t.Error("meta should be recorded")
	}
	if site.MarkStep(StepMeta) {
		t.Error("repeated step should not be recorded twice")
	}
	if !site.MarkStep(StepActivateFeatures) {
		t.Error("forward jump should be recorded")
	}
	if site.MarkStep(StepInstallDependencies) {
		t.Error("backward step should be ignored")
	}
	if site.CurrentStep != StepActivateFeatures {
		t.Errorf("unexpected current step %s", site.CurrentStep)
	}
	if len(site.CompletedSteps) != 2 {
		t.Errorf("expected 2 completed steps, got %v", site.CompletedSteps)
	}
	if site.CompletedAt != nil {
		t.Error("CompletedAt should be nil before complete")
	}

	site.MarkStep(StepComplete)
	if !site.IsFinished() || site.CompletedAt == nil {
		t.Error("site should be finished")
	}
}

func TestSite_StartupPayload(t *testing.T) {
	site := &Site{
		ID:          "s1",
		CurrentStep: StepComplete,
		ProTested:   true,
		IsPro:       false,
		Payload:     StartupPayload{Install: []string{"forms"}},
	}

	p := site.StartupPayload()
	if p.SiteID != "s1" || p.CurrentStep != StepComplete {
		t.Errorf("unexpected payload: %+v", p)
	}
	if !p.ChecklistCompleted {
		t.Error("finished site should report checklist completed")
	}
	if !p.ProTested || p.IsPro {
		t.Error("license result should be carried into payload")
	}
}

// --- Payload Tests ---

func TestStartupPayload_PluginInfo(t *testing.T) {
	p := &StartupPayload{
		Plugins: map[string]Item{"forms": {Name: "Forms"}},
	}

	item, ok := p.PluginInfo("forms")
	if !ok || item.ID != "forms" || item.DisplayName() != "Forms" {
		t.Errorf("unexpected item: %+v", item)
	}

	if _, ok := p.PluginInfo("missing"); ok {
		t.Error("missing plugin should not be found")
	}
	if _, ok := p.Feature("x"); ok {
		t.Error("nil FeatureInfo should not panic or match")
	}
}
