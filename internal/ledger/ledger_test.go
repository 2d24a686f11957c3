package ledger

import "testing"

func TestParseCategoryFallsBackToOther(t *testing.T) {
	cases := map[string]Category{
		"user":       CategoryUser,
		"message":    CategoryMessage,
		"channel":    CategoryChannel,
		"admin":      CategoryAdmin,
		"security":   CategorySecurity,
		"automation": CategoryAutomation,
		"other":      CategoryOther,
		"billing":    CategoryOther,
		"USER":       CategoryOther,
		"":           CategoryOther,
	}
	for in, want := range cases {
		if got := ParseCategory(in); got != want {
			t.Errorf("ParseCategory(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseSeverityFallsBackToInfo(t *testing.T) {
	cases := map[string]Severity{
		"info":     SeverityInfo,
		"warning":  SeverityWarning,
		"error":    SeverityError,
		"critical": SeverityCritical,
		"fatal":    SeverityInfo,
		"":         SeverityInfo,
	}
	for in, want := range cases {
		if got := ParseSeverity(in); got != want {
			t.Errorf("ParseSeverity(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseActorTypeFallsBackToSystem(t *testing.T) {
	cases := map[string]ActorType{
		"user":    ActorUser,
		"system":  ActorSystem,
		"bot":     ActorBot,
		"service": ActorService,
		"daemon":  ActorSystem,
		"":        ActorSystem,
	}
	for in, want := range cases {
		if got := ParseActorType(in); got != want {
			t.Errorf("ParseActorType(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSeverityRankOrdering(t *testing.T) {
	ordered := []Severity{SeverityInfo, SeverityWarning, SeverityError, SeverityCritical}
	for i := 1; i < len(ordered); i++ {
		if ordered[i-1].Rank() >= ordered[i].Rank() {
			t.Errorf("Rank(%s) = %d not below Rank(%s) = %d",
				ordered[i-1], ordered[i-1].Rank(), ordered[i], ordered[i].Rank())
		}
	}
}

func TestValidAction(t *testing.T) {
	valid := []string{
		"user.login",
		"message.bulk_deleted",
		"channel.deleted",
		"config.changed",
		"a.b.c",
		"automation.webhook_fired",
	}
	for _, s := range valid {
		if !ValidAction(s) {
			t.Errorf("ValidAction(%q) = false, want true", s)
		}
	}

	invalid := []string{
		"",
		"user",
		"User.Login",
		"user..login",
		".login",
		"user.",
		"user login",
		"user.log-in",
	}
	for _, s := range invalid {
		if ValidAction(s) {
			t.Errorf("ValidAction(%q) = true, want false", s)
		}
	}
}
