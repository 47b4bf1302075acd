package ui

import (
	"strings"
	"testing"
)

func TestDetectTheme_ColorFgBg(t *testing.T) {
	t.Setenv("SPECTER_DARK_MODE", "")

	t.Setenv("COLORFGBG", "15;0")
	if theme := DetectTheme(); !theme.IsDark {
		t.Error("Expected dark theme for black background")
	}

	t.Setenv("COLORFGBG", "0;15")
	if theme := DetectTheme(); theme.IsDark {
		t.Error("Expected light theme for white background")
	}
}

func TestDetectTheme_EnvOverride(t *testing.T) {
	t.Setenv("COLORFGBG", "")
	t.Setenv("SPECTER_DARK_MODE", "1")
	if theme := DetectTheme(); !theme.IsDark {
		t.Error("Expected dark theme from SPECTER_DARK_MODE")
	}
}

func TestDetectTheme_DefaultsToLight(t *testing.T) {
	t.Setenv("COLORFGBG", "")
	t.Setenv("SPECTER_DARK_MODE", "")
	if theme := DetectTheme(); theme.IsDark {
		t.Error("Expected light theme by default")
	}
}

func TestBanner(t *testing.T) {
	banner := Banner(NewStyles(LightTheme()))
	if !strings.Contains(banner, "autonomous security assessment agent") {
		t.Error("Expected tagline in banner")
	}
	if len(strings.Split(banner, "\n")) < 5 {
		t.Error("Expected multi-line banner art")
	}
}

func TestRenderDivider(t *testing.T) {
	s := NewStyles(LightTheme())
	if !strings.Contains(s.RenderDivider(4), "────") {
		t.Error("Expected four-segment divider")
	}
	if s.RenderDivider(0) == "" {
		t.Error("Expected non-empty divider for zero width")
	}
}

func TestTable_Render(t *testing.T) {
	table := NewTable("Registered tools", "NAME", "STATUS")
	table.AddRow("nmap", "available")
	table.AddRow("metasploit", "unavailable")

	out := table.Render(NewStyles(LightTheme()))
	for _, want := range []string{"Registered tools", "NAME", "STATUS", "nmap", "metasploit"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in table output:\n%s", want, out)
		}
	}

	nameLine := ""
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "nmap") {
			nameLine = line
		}
	}
	if !strings.Contains(nameLine, "|") {
		t.Errorf("Expected column separator in row %q", nameLine)
	}
}

func TestTable_RenderEmpty(t *testing.T) {
	table := NewTable("Empty", "A", "B")
	out := table.Render(NewStyles(LightTheme()))
	if !strings.Contains(out, "(empty)") {
		t.Errorf("Expected empty placeholder, got %q", out)
	}
}

func TestTable_ShortRowPads(t *testing.T) {
	table := NewTable("", "A", "B", "C")
	table.AddRow("only-a")
	out := table.Render(NewStyles(LightTheme()))
	if !strings.Contains(out, "only-a") {
		t.Errorf("Expected short row rendered, got %q", out)
	}
}
