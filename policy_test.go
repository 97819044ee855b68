package offlinekit

import (
	"strings"
	"testing"
)

func TestGeneratePolicyIsDeterministic(t *testing.T) {
	if GeneratePolicy() != GeneratePolicy() {
		t.Fatal("Two invocations returned different text")
	}
}

func TestPolicyScriptEmbedsGeneration(t *testing.T) {
	script := GeneratePolicy()
	if !strings.Contains(script, `var CACHE_NAME = "`+CacheGeneration+`";`) {
		t.Fatalf("Generation identifier not embedded:\n%s", script)
	}
	if !strings.Contains(script, `var SCRIPT_PATH = "`+WellKnownPath+`";`) {
		t.Fatal("Well-known path not embedded")
	}
	if !strings.Contains(script, `var API_PREFIX = "`+APIPrefix+`";`) {
		t.Fatal("API prefix not embedded")
	}
}

func TestPolicyScriptInterceptsOnlyGet(t *testing.T) {
	script := GeneratePolicy()
	if !strings.Contains(script, `if (event.request.method !== "GET")`) {
		t.Fatal("Non-GET requests are not passed through")
	}
}

func TestPolicyScriptMessageContract(t *testing.T) {
	script := GeneratePolicy()
	if !strings.Contains(script, `"skip-waiting"`) {
		t.Fatal("skip-waiting message not handled")
	}
	if !strings.Contains(script, `"cache-updated"`) {
		t.Fatal("cache-updated message not emitted")
	}
}

func TestPolicyScriptOfflineContract(t *testing.T) {
	script := GeneratePolicy()
	for _, want := range []string{
		`error: "Offline"`,
		"timestamp: new Date().toISOString()",
		"status: 503",
		`statusText: "Service Unavailable"`,
	} {
		if !strings.Contains(script, want) {
			t.Fatalf("Offline fallback missing %q", want)
		}
	}
}
