package loader

import "testing"

func TestValidCoordinates(t *testing.T) {
	valid := []string{
		"com.example:example:1.0.0",
		"com.example:example:1.0.0:identifier",
		"com.example:example:1.0",
		"com.example:example:1.0:identifier@zip",
		"com.example:example-something:1.0.final",
		"com.example:example-something:1.0.0.Final-beta.1",
		"com.example.example:example-example:1.0.0",
		"com.example.example:example-example:1.0.0.0",
		"com.example.example:example-example:1.0.0.0.0.0.0",
		"com.example.example:example-example:1.0.0-SNAPSHOT",
		"com.example.example:example-example:1.0.0-beta.1",
	}
	for _, c := range valid {
		if !mavenCoordPattern.MatchString(c) {
			t.Errorf("expected %q to be valid", c)
		}
	}
}

func TestInvalidCoordinates(t *testing.T) {
	invalid := []string{
		"",
		"com.example:example:1",
		"com.example:example",
		"com.example:example:not_a_version:extra",
		"@com.example:example:1.0.0",
		"com.example:example:1.0.0:@",
		"com.example@:example:1.0.0",
		"com.example:example:1.0.0@",
		"justsometext",
	}
	for _, c := range invalid {
		if mavenCoordPattern.MatchString(c) {
			t.Errorf("expected %q to be invalid", c)
		}
	}
}

func TestParseCoordinates(t *testing.T) {
	c, err := ParseMavenCoordinates("com.example:example:1.0.0", "")
	if err != nil {
		t.Fatalf("ParseMavenCoordinates: %v", err)
	}
	if c.GroupID != "com.example" || c.ArtifactID != "example" || c.Version != "1.0.0" || c.Identifier != "" || c.Extension != "jar" {
		t.Errorf("c = %+v", c)
	}

	c, err = ParseMavenCoordinates("com.example.example:example-example:1.0.0-SNAPSHOT@zip", "")
	if err != nil {
		t.Fatalf("ParseMavenCoordinates: %v", err)
	}
	if c.Version != "1.0.0-SNAPSHOT" || c.Extension != "zip" {
		t.Errorf("c = %+v", c)
	}

	c, err = ParseMavenCoordinates("com.example.example:example-example:1.0.0-SNAPSHOT:identifier@zip", "")
	if err != nil {
		t.Fatalf("ParseMavenCoordinates: %v", err)
	}
	if c.Identifier != "identifier" || c.Extension != "zip" {
		t.Errorf("c = %+v", c)
	}
}

func TestParseMavenCoordinatesRejectsInvalid(t *testing.T) {
	if _, err := ParseMavenCoordinates("", ""); err == nil {
		t.Error("expected error for empty coordinates")
	}
	if _, err := ParseMavenCoordinates("justsometext", ""); err == nil {
		t.Error("expected error for non-maven text")
	}
}

func TestMavenCoordinatesPath(t *testing.T) {
	c, err := ParseMavenCoordinates("com.example:example:1.0.0", "")
	if err != nil {
		t.Fatalf("ParseMavenCoordinates: %v", err)
	}
	got := c.Path()
	want := "com/example/example/1.0.0/example-1.0.0.jar"
	if got != want {
		t.Errorf("Path() = %q, want %q", got, want)
	}

	c, err = ParseMavenCoordinates("com.example:example:1.0.0:identifier@zip", "natives-linux")
	if err != nil {
		t.Fatalf("ParseMavenCoordinates: %v", err)
	}
	got = c.Path()
	want = "com/example/example/1.0.0/example-1.0.0-identifier-natives-linux.zip"
	if got != want {
		t.Errorf("Path() = %q, want %q", got, want)
	}
}
