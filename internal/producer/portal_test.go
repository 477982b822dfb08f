package producer

import "testing"

func TestArticleHrefShapes(t *testing.T) {
	tests := []struct {
		href string
		want bool
	}{
		{"https://www.larepublica.co/economia/dolar-cerro-al-alza-3812345", true},
		{"https://www.eltiempo.com/economia/sectores/nota-larga-765432/", true},
		{"https://www.elespectador.com/economia/2024/08/15/titular-de-la-nota/", true},
		{"https://www.portafolio.co/economia", false},
		{"https://www.portafolio.co/economia/dolar-hoy", false},
		{"https://www.eltiempo.com/economia/nota-12", false}, // id too short
	}
	for _, tt := range tests {
		if got := articleHref.MatchString(tt.href); got != tt.want {
			t.Errorf("articleHref(%q) = %v, want %v", tt.href, got, tt.want)
		}
	}
}

func TestAbsolutize(t *testing.T) {
	tests := []struct {
		href string
		want string
	}{
		{"/economia/nota-123456", "https://www.eltiempo.com/economia/nota-123456"},
		{"//www.eltiempo.com/economia/nota-9", "https://www.eltiempo.com/economia/nota-9"},
		{"https://www.eltiempo.com/economia/nota-5", "https://www.eltiempo.com/economia/nota-5"},
		{"https://otro-sitio.com/economia/nota-5", ""}, // off domain
		{"#comentarios", ""},
		{"javascript:void(0)", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := absolutize(tt.href, "eltiempo.com"); got != tt.want {
			t.Errorf("absolutize(%q) = %q, want %q", tt.href, got, tt.want)
		}
	}
}

func TestPageURL(t *testing.T) {
	d := &PortalDiscoverer{}
	plan := portalPlans[0] // larepublica.co, ?page=N

	if got := d.pageURL(plan, "/economia", 1); got != "https://www.larepublica.co/economia" {
		t.Errorf("page 1 = %q, want no pagination suffix", got)
	}
	if got := d.pageURL(plan, "/economia", 3); got != "https://www.larepublica.co/economia?page=3" {
		t.Errorf("page 3 = %q", got)
	}

	var eltiempo portalPlan
	for _, p := range portalPlans {
		if p.domain == "eltiempo.com" {
			eltiempo = p
		}
	}
	if got := d.pageURL(eltiempo, "/economia", 2); got != "https://www.eltiempo.com/economia/page/2" {
		t.Errorf("eltiempo page 2 = %q", got)
	}
}
