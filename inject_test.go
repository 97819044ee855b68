package offlinekit

import (
	"bytes"
	"strings"
	"testing"
)

func TestInjectBeforeBodyClose(t *testing.T) {
	doc := []byte("<html><body><p>hello</p></body></html>")
	out := Inject(doc)

	if count := bytes.Count(out, []byte(augmentation)); count != 1 {
		t.Fatalf("Augmentation found %d times", count)
	}
	i := bytes.Index(out, []byte(augmentation))
	if !bytes.Equal(out[:i], []byte("<html><body><p>hello</p>")) {
		t.Fatalf("Document before augmentation changed: %s", out[:i])
	}
	if !bytes.Equal(out[i+len(augmentation):], []byte("</body></html>")) {
		t.Fatalf("Document after augmentation changed: %s", out[i+len(augmentation):])
	}
}

func TestInjectBeforeFirstBodyClose(t *testing.T) {
	doc := []byte("<body>one</body><body>two</body>")
	out := Inject(doc)

	i := bytes.Index(out, []byte(augmentation))
	if !bytes.Equal(out[:i], []byte("<body>one")) {
		t.Fatalf("Augmentation not before first closing tag: %s", out[:i])
	}
}

func TestInjectAppendsWithoutBodyClose(t *testing.T) {
	doc := []byte("<p>no body tag here")
	out := Inject(doc)

	if want := string(doc) + augmentation; string(out) != want {
		t.Fatalf("Got %s", out)
	}
}

func TestInjectCaseSensitiveMarker(t *testing.T) {
	doc := []byte("<BODY>shouty</BODY>")
	out := Inject(doc)

	// uppercase marker does not count, so the block is appended
	if want := string(doc) + augmentation; string(out) != want {
		t.Fatalf("Got %s", out)
	}
}

func TestInjectEmptyDocument(t *testing.T) {
	if out := Inject(nil); string(out) != augmentation {
		t.Fatalf("Got %s", out)
	}
}

func TestInjectDoesNotMutateInput(t *testing.T) {
	doc := []byte("<body>x</body>")
	orig := string(doc)
	Inject(doc)
	if string(doc) != orig {
		t.Fatalf("Input mutated: %s", doc)
	}
}

func TestInjectString(t *testing.T) {
	out := InjectString("<body></body>")
	if !strings.Contains(out, "offline-kit-status") {
		t.Fatalf("Missing status banner: %s", out)
	}
}

func TestAugmentationRegistersAgentAtWellKnownPath(t *testing.T) {
	if !strings.Contains(augmentation, "register(\""+WellKnownPath+"\")") {
		t.Fatal("Bootstrap does not register the agent at the well-known path")
	}
}
