package launch

import (
	"os"
	"strings"
	"testing"

	"github.com/nickheyer/launcherd/internal/loader"
)

func TestAssembleArgumentsSubstitutesPlaceholders(t *testing.T) {
	manifest := &loader.VersionManifest{
		Arguments: loader.Arguments{
			Game: []loader.Argument{
				{Plain: "--username"},
				{Plain: "${auth_player_name}"},
				{Plain: "--gameDir"},
				{Plain: "${game_directory}"},
			},
			JVM: []loader.Argument{
				{Plain: "-Djava.library.path=${natives_directory}"},
				{Plain: "-cp"},
				{Plain: "${classpath}"},
			},
		},
	}
	ctx := PlaceholderContext{
		AuthPlayerName: "Steve",
		GameDirectory:  "/instances/foo/minecraft",
		NativesDir:     "/instances/foo/natives",
		Classpath:      "/lib/a.jar:/lib/b.jar",
	}

	jvm, game := AssembleArguments(manifest, ctx, nil)

	wantGame := []string{"--username", "Steve", "--gameDir", "/instances/foo/minecraft"}
	if strings.Join(game, "|") != strings.Join(wantGame, "|") {
		t.Errorf("game args = %v, want %v", game, wantGame)
	}

	if jvm[0] != "-Djava.library.path=/instances/foo/natives" {
		t.Errorf("jvm[0] = %q", jvm[0])
	}
	if jvm[2] != "/lib/a.jar:/lib/b.jar" {
		t.Errorf("jvm[2] = %q", jvm[2])
	}
}

func TestAssembleArgumentsFiltersConditional(t *testing.T) {
	manifest := &loader.VersionManifest{
		Arguments: loader.Arguments{
			Game: []loader.Argument{
				{
					Rules: []loader.Rule{{Action: "allow", OS: &loader.OSRule{Name: "not-" + CurrentOSName()}}},
					Value: []string{"--demo"},
				},
				{Plain: "--width"},
			},
		},
	}

	_, game := AssembleArguments(manifest, PlaceholderContext{}, nil)
	if len(game) != 1 || game[0] != "--width" {
		t.Errorf("game = %v, want only [--width]", game)
	}
}

func TestBuildClasspathJoinsWithPlatformSeparator(t *testing.T) {
	paths := []LibraryPaths{
		{ArtifactPath: "/lib/a.jar"},
		{ArtifactPath: ""},
		{ArtifactPath: "/lib/b.jar"},
	}
	got := BuildClasspath(paths, "/versions/client.jar")
	sep := string(os.PathListSeparator)
	want := "/lib/a.jar" + sep + "/lib/b.jar" + sep + "/versions/client.jar"
	if got != want {
		t.Errorf("BuildClasspath = %q, want %q", got, want)
	}
}
