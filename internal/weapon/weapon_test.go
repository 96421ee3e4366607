package weapon

import (
	"encoding/json"
	"errors"
	"testing"
	"testing/fstest"
)

func TestBuffs_ToggleIsMutuallyExclusive(t *testing.T) {
	tests := []struct {
		name  string
		start Buffs
		flip  Buff
		want  Buffs
	}{
		{"enable valby from none", Buffs{}, BuffValby, Buffs{Valby: true}},
		{"enable gley clears valby", Buffs{Valby: true}, BuffGley, Buffs{Gley: true}},
		{"enable valby clears gley", Buffs{Gley: true}, BuffValby, Buffs{Valby: true}},
		{"enable enzo clears valby", Buffs{Valby: true}, BuffEnzo, Buffs{Enzo: true}},
		{"disable active buff", Buffs{Valby: true}, BuffValby, Buffs{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.start.Toggle(tt.flip)
			if got != tt.want {
				t.Errorf("Toggle(%s) = %+v, want %+v", tt.flip, got, tt.want)
			}
		})
	}
}

func TestConfigKey(t *testing.T) {
	tests := []struct {
		hit   float64
		buffs Buffs
		want  string
	}{
		{1, Buffs{Valby: true}, "1_valby"},
		{1, Buffs{}, "1_none"},
		{0.25, Buffs{Gley: true}, "0.25_gley"},
		{0.33, Buffs{Enzo: true}, "0.33_enzo"},
	}
	for _, tt := range tests {
		if got := ConfigKey(tt.hit, tt.buffs); got != tt.want {
			t.Errorf("ConfigKey(%v, %+v) = %q, want %q", tt.hit, tt.buffs, got, tt.want)
		}
	}
}

func TestSplitConfigKey(t *testing.T) {
	tests := []struct {
		key    string
		hit    string
		mode   string
		wantOK bool
	}{
		{"1_valby", "1", "valby", true},
		{"1_noValby", "1", "noValby", true},
		{"0.5_none", "0.5", "none", true},
		{"garbage", "", "", false},
		{"_valby", "", "", false},
		{"1_", "", "", false},
	}
	for _, tt := range tests {
		hit, mode, ok := SplitConfigKey(tt.key)
		if ok != tt.wantOK || hit != tt.hit || mode != tt.mode {
			t.Errorf("SplitConfigKey(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tt.key, hit, mode, ok, tt.hit, tt.mode, tt.wantOK)
		}
	}
}

func TestParseBuff(t *testing.T) {
	for _, s := range []string{"", "none", "NONE"} {
		b, err := ParseBuff(s)
		if err != nil || b != (Buffs{}) {
			t.Errorf("ParseBuff(%q) = %+v, %v; want no buffs", s, b, err)
		}
	}
	b, err := ParseBuff("Gley")
	if err != nil || !b.Gley {
		t.Errorf("ParseBuff(Gley) = %+v, %v", b, err)
	}
	if _, err := ParseBuff("bunny"); err == nil {
		t.Error("ParseBuff(bunny) should fail")
	}
}

func TestFilter_CaseInsensitiveSubstring(t *testing.T) {
	// Given: a catalog with mixed-case names
	weapons := FromNames([]string{"EnduringLegacy", "MysteryEye", "Thunder Cage", "BATTERY"})

	// When: filtering on "ery"
	got := Filter(weapons, "ery")

	// Then: only names containing "ery" in any case remain, in order
	want := []string{"MysteryEye", "BATTERY"}
	if len(got) != len(want) {
		t.Fatalf("Filter(ery) = %v, want %v", got, want)
	}
	for i := range want {
		if got[i].Name != want[i] {
			t.Errorf("Filter(ery)[%d] = %q, want %q", i, got[i].Name, want[i])
		}
	}
}

func TestFilter_EmptyTermMatchesAll(t *testing.T) {
	weapons := FromNames([]string{"a", "b"})
	if got := Filter(weapons, "  "); len(got) != 2 {
		t.Errorf("Filter(blank) len = %d, want 2", len(got))
	}
}

func TestModuleContribution_DecodesPairAndBareModule(t *testing.T) {
	payload := `{
		"max_dps": 1234.5,
		"best_rolls": [{"roll_type": "FirearmAtk", "value": 0.1}],
		"best_modules": [
			[{"name": "Rifling", "module_type": "General"}, 12.5],
			{"name": "Bare", "module_type": "Special"}
		]
	}`

	var r Result
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(r.BestModules) != 2 {
		t.Fatalf("modules = %d, want 2", len(r.BestModules))
	}
	if r.BestModules[0].Module.Name != "Rifling" || r.BestModules[0].Contribution != 12.5 {
		t.Errorf("module[0] = %+v", r.BestModules[0])
	}
	if r.BestModules[1].Module.Name != "Bare" || r.BestModules[1].Contribution != 0 {
		t.Errorf("module[1] = %+v", r.BestModules[1])
	}
}

func TestModuleContribution_RejectsWrongArity(t *testing.T) {
	var mc ModuleContribution
	if err := json.Unmarshal([]byte(`[{"name":"x"}]`), &mc); err == nil {
		t.Error("expected error for single-element pair")
	}
}

func TestResult_ModulesByContribution(t *testing.T) {
	r := Result{BestModules: []ModuleContribution{
		{Module: Module{Name: "low"}, Contribution: 1},
		{Module: Module{Name: "high"}, Contribution: 9},
		{Module: Module{Name: "mid"}, Contribution: 5},
	}}

	got := r.ModulesByContribution()

	want := []string{"high", "mid", "low"}
	for i, name := range want {
		if got[i].Module.Name != name {
			t.Errorf("sorted[%d] = %q, want %q", i, got[i].Module.Name, name)
		}
	}
	if r.BestModules[0].Module.Name != "low" {
		t.Error("ModulesByContribution must not reorder the receiver")
	}
}

func TestResult_Validate(t *testing.T) {
	if err := (Result{}).Validate(); !errors.Is(err, ErrNoResult) {
		t.Errorf("empty result Validate() = %v, want ErrNoResult", err)
	}
	if err := (Result{MaxDPS: 1}).Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestRequest_KeyAndJSON(t *testing.T) {
	req := NewRequest("Thunder Cage", 0.5, Buffs{Gley: true})

	if got, want := req.Key(), "Thunder Cage_0.5_gley"; got != want {
		t.Errorf("Key() = %q, want %q", got, want)
	}

	data, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"weapon":"Thunder Cage","weak_point_hit_chance":0.5,"valby":false,"gley":true}`
	if string(data) != want {
		t.Errorf("json = %s, want %s", data, want)
	}
}

func TestDataMap_Lookup(t *testing.T) {
	d := DataMap{"Belief": {"1_enzo": {MaxDPS: 10}}}
	if r, ok := d.Lookup("Belief", "1_enzo"); !ok || r.MaxDPS != 10 {
		t.Errorf("Lookup hit = %+v, %v", r, ok)
	}
	if _, ok := d.Lookup("Belief", "1_valby"); ok {
		t.Error("Lookup should miss on unknown key")
	}
	if _, ok := d.Lookup("Nope", "1_enzo"); ok {
		t.Error("Lookup should miss on unknown weapon")
	}
}

func TestLoadClasses(t *testing.T) {
	fsys := fstest.MapFS{
		ClassesFile: {Data: []byte("sniper:\n  - Belief\n  - PiercingLight\n")},
	}

	c, err := LoadClasses(fsys)
	if err != nil {
		t.Fatalf("LoadClasses() error = %v", err)
	}
	if !c.IsSniper("Belief") {
		t.Error("Belief should be a sniper")
	}
	if c.IsSniper("Thunder Cage") {
		t.Error("Thunder Cage should not be a sniper")
	}
}

func TestLoadClasses_Missing(t *testing.T) {
	if _, err := LoadClasses(fstest.MapFS{}); err == nil {
		t.Error("expected error for missing classes file")
	}
}
