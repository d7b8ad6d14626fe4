package geminidev_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/mr-joshcrane/geminidev"
)

func TestRollBackMessage_HandlesZeroLengthContexts(t *testing.T) {
	t.Parallel()
	client := testClient(t)
	client.RollbackLastMessage()
}

func TestRollBackMessage_HandlesMultiMessageContexts(t *testing.T) {
	t.Parallel()
	client := testClient(t)
	client.RecordMessage(geminidev.RoleUser, "This is the question")
	client.RecordMessage(geminidev.RoleModel, "This is the answer")
	messages := client.RollbackLastMessage()
	got := messages[len(messages)-1].Content
	want := "This is the question"
	if want != got {
		t.Fatalf("wanted %s, got %s", want, got)
	}
}

func TestTranscript(t *testing.T) {
	t.Parallel()
	buf := new(bytes.Buffer)
	client := testClient(t,
		geminidev.WithConfig(geminidev.Config{Provider: geminidev.ProviderGemini, Plain: true, SystemInstruction: "Return fixed responses"}),
		geminidev.WithTranscript(buf),
	)
	for _, q := range []string{"Question?", "Other question?"} {
		if _, err := client.Ask(context.Background(), geminidev.AskOptions{Prompt: q}); err != nil {
			t.Fatal(err)
		}
	}
	want := []string{
		"SYSTEM) PURPOSE: Return fixed responses",
		"USER) Question?",
		"MODEL) Fixed response",
		"USER) Other question?",
		"MODEL) Fixed response",
		"",
	}
	got := strings.Split(buf.String(), "\n")
	if !cmp.Equal(want, got) {
		t.Fatal(cmp.Diff(want, got))
	}
}

func TestComplete_SendsPurposeAndCopyOfPriorTurns(t *testing.T) {
	t.Parallel()
	var requests []geminidev.Request
	oracle := geminidev.OracleFunc(func(_ context.Context, req geminidev.Request) (geminidev.Response, error) {
		requests = append(requests, req)
		if len(req.History) > 0 {
			req.History[0].Content = "tampered"
		}
		return geminidev.Response{Text: "answer to " + req.Prompt}, nil
	})
	client := testClient(t,
		geminidev.WithConfig(geminidev.Config{Provider: geminidev.ProviderGemini, Plain: true, SystemInstruction: "be brief"}),
		geminidev.WithOracle(oracle),
	)
	ctx := context.Background()
	if _, err := client.Complete(ctx, "one"); err != nil {
		t.Fatal(err)
	}
	if _, err := client.Complete(ctx, "two"); err != nil {
		t.Fatal(err)
	}
	want := []geminidev.ChatMessage{
		{Role: geminidev.RoleUser, Content: "tampered"},
		{Role: geminidev.RoleModel, Content: "answer to one"},
	}
	if !cmp.Equal(want, requests[1].History) {
		t.Error(cmp.Diff(want, requests[1].History))
	}
	if requests[1].System != "be brief" {
		t.Errorf("wanted system instruction, got %q", requests[1].System)
	}
	turns := client.Session().Turns
	if len(turns) != 4 || turns[0].Content != "one" {
		t.Fatalf("session must be unaffected by the oracle, got %+v", turns)
	}
}

func TestComplete_RollsBackOnCommunicationError(t *testing.T) {
	t.Parallel()
	boom := errors.New("connection reset")
	client := testClient(t, geminidev.WithOracle(geminidev.OracleFunc(func(context.Context, geminidev.Request) (geminidev.Response, error) {
		return geminidev.Response{}, &geminidev.CommunicationError{Provider: "gemini", Err: boom}
	})))
	_, err := client.Complete(context.Background(), "hello")
	if !errors.Is(err, boom) {
		t.Fatalf("wanted wrapped connection error, got %v", err)
	}
	if n := len(client.Session().Turns); n != 0 {
		t.Fatalf("wanted no turns after failure, got %d", n)
	}
}

func TestComplete_ReportsBlockedResponses(t *testing.T) {
	t.Parallel()
	client := testClient(t, geminidev.WithOracle(geminidev.OracleFunc(func(context.Context, geminidev.Request) (geminidev.Response, error) {
		return geminidev.Response{BlockReason: "SAFETY"}, nil
	})))
	_, err := client.Complete(context.Background(), "hello")
	var blocked *geminidev.BlockedError
	if !errors.As(err, &blocked) || blocked.Reason != "SAFETY" {
		t.Fatalf("wanted BlockedError, got %v", err)
	}
	if n := len(client.Session().Turns); n != 0 {
		t.Fatalf("wanted no turns after a blocked prompt, got %d", n)
	}
}

func TestAsk_SavesRequestedLanguageBlock(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "scripts", "run.sh")
	client := testClient(t, geminidev.WithFixedResponse(twoBlocks))
	_, err := client.Ask(context.Background(), geminidev.AskOptions{Prompt: "write it", OutputFile: path, Language: "bash"})
	if err != nil {
		t.Fatal(err)
	}
	assertFile(t, path, "python main.py")
}

func TestAsk_WarnsWhenFallingBackToFirstBlock(t *testing.T) {
	t.Parallel()
	out := new(bytes.Buffer)
	path := filepath.Join(t.TempDir(), "main.rs")
	client := testClient(t, geminidev.WithFixedResponse(twoBlocks), geminidev.WithOutput(out, io.Discard))
	_, err := client.Ask(context.Background(), geminidev.AskOptions{Prompt: "write it", OutputFile: path, Language: "rust"})
	if err != nil {
		t.Fatal(err)
	}
	assertFile(t, path, `print("hi")`)
	if !strings.Contains(out.String(), "No specific 'rust' code block found") {
		t.Fatalf("missing fallback warning in output:\n%s", out)
	}
}

func TestAsk_SavesWholeAnswerWithoutCodeBlocks(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "answer.md")
	client := testClient(t, geminidev.WithFixedResponse("Just use a map."))
	_, err := client.Ask(context.Background(), geminidev.AskOptions{Prompt: "how?", OutputFile: path})
	if err != nil {
		t.Fatal(err)
	}
	assertFile(t, path, "Just use a map.")
}

func TestAsk_EmbedsContextFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	ctxPath := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(ctxPath, []byte("the notes"), 0o644); err != nil {
		t.Fatal(err)
	}
	var prompt string
	client := testClient(t, geminidev.WithOracle(geminidev.OracleFunc(func(_ context.Context, req geminidev.Request) (geminidev.Response, error) {
		prompt = req.Prompt
		return geminidev.Response{Text: "ok"}, nil
	})))
	_, err := client.Ask(context.Background(), geminidev.AskOptions{Prompt: "Summarise", Context: ctxPath})
	if err != nil {
		t.Fatal(err)
	}
	want := "--- CONTEXT FROM FILE: notes.txt ---\n```\nthe notes\n```\n\n--- USER PROMPT ---\nSummarise"
	if want != prompt {
		t.Fatal(cmp.Diff(want, prompt))
	}
}

func TestAsk_RejectsEmptyPrompt(t *testing.T) {
	t.Parallel()
	client := testClient(t)
	if _, err := client.Ask(context.Background(), geminidev.AskOptions{Prompt: "  "}); err == nil {
		t.Fatal("expected an error")
	}
}

func TestSuggestCommit_PromptsWithDiff(t *testing.T) {
	t.Parallel()
	git := &fakeGit{diff: "+added line\n"}
	var prompt string
	client := testClient(t, geminidev.WithGit(git), geminidev.WithOracle(geminidev.OracleFunc(func(_ context.Context, req geminidev.Request) (geminidev.Response, error) {
		prompt = req.Prompt
		return geminidev.Response{Text: "  feat: add line\n"}, nil
	})))
	msg, err := client.SuggestCommit(context.Background(), geminidev.CommitOptions{DiffArgs: "--staged"})
	if err != nil {
		t.Fatal(err)
	}
	if msg != "feat: add line" {
		t.Errorf("wanted trimmed message, got %q", msg)
	}
	if git.args != "--staged" {
		t.Errorf("wanted --staged diff, got %q", git.args)
	}
	if !strings.Contains(prompt, "```diff\n+added line\n") {
		t.Errorf("diff missing from prompt:\n%s", prompt)
	}
	if len(git.commits) != 0 {
		t.Errorf("must not commit without Apply, got %v", git.commits)
	}
}

func TestSuggestCommit_ReportsNoChanges(t *testing.T) {
	t.Parallel()
	client := testClient(t, geminidev.WithGit(&fakeGit{diff: "\n"}))
	_, err := client.SuggestCommit(context.Background(), geminidev.CommitOptions{})
	if !errors.Is(err, geminidev.ErrNoChanges) {
		t.Fatalf("wanted ErrNoChanges, got %v", err)
	}
}

func TestSuggestCommit_StopsOutsideRepository(t *testing.T) {
	t.Parallel()
	client := testClient(t, geminidev.WithGit(&fakeGit{repoErr: geminidev.ErrNotRepository}))
	_, err := client.SuggestCommit(context.Background(), geminidev.CommitOptions{})
	if !errors.Is(err, geminidev.ErrNotRepository) {
		t.Fatalf("wanted ErrNotRepository, got %v", err)
	}
}

func TestSuggestCommit_ApplyCommitsOnlyWhenAccepted(t *testing.T) {
	t.Parallel()
	cases := []struct {
		input string
		want  []string
	}{
		{input: "y\n", want: []string{"Fixed response"}},
		{input: "Yes\n", want: []string{"Fixed response"}},
		{input: "n\n", want: nil},
		{input: "\n", want: nil},
		{input: "", want: nil},
	}
	for _, tc := range cases {
		git := &fakeGit{diff: "+x"}
		client := testClient(t, geminidev.WithGit(git), geminidev.WithInput(strings.NewReader(tc.input)))
		if _, err := client.SuggestCommit(context.Background(), geminidev.CommitOptions{Apply: true}); err != nil {
			t.Fatal(err)
		}
		if !cmp.Equal(tc.want, git.commits) {
			t.Errorf("input %q: %s", tc.input, cmp.Diff(tc.want, git.commits))
		}
	}
}

func TestCreateProject_WritesFilesAndReports(t *testing.T) {
	t.Parallel()
	out := new(bytes.Buffer)
	dir := filepath.Join(t.TempDir(), "proj")
	client := testClient(t, geminidev.WithFixedResponse(scaffold), geminidev.WithOutput(out, io.Discard))
	res, err := client.CreateProject(context.Background(), geminidev.ProjectOptions{Description: "hello app", OutputDir: dir})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"src/main.py"}, res.Created); diff != "" {
		t.Error(diff)
	}
	assertFile(t, filepath.Join(dir, "src", "main.py"), `print("hi")`)
	for _, want := range []string{"Created:", "Skipped:", "../../etc/passwd: PathEscape", "1 file(s) created, 1 skipped."} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestCreateProject_ShowsRawResponseOnParseError(t *testing.T) {
	t.Parallel()
	out := new(bytes.Buffer)
	raw := "I would rather describe the project in prose."
	client := testClient(t, geminidev.WithFixedResponse(raw), geminidev.WithOutput(out, io.Discard))
	_, err := client.CreateProject(context.Background(), geminidev.ProjectOptions{Description: "x", OutputDir: t.TempDir()})
	if !errors.Is(err, geminidev.ErrParse) {
		t.Fatalf("wanted ErrParse, got %v", err)
	}
	if strings.Count(out.String(), raw) < 2 {
		t.Fatalf("raw response should be printed after the rendered one:\n%s", out)
	}
}

type fakeGit struct {
	repoErr error
	diff    string
	args    string
	commits []string
}

func (f *fakeGit) IsWorkTree(context.Context) error {
	return f.repoErr
}

func (f *fakeGit) Diff(_ context.Context, args string) (string, error) {
	f.args = args
	return f.diff, nil
}

func (f *fakeGit) Commit(_ context.Context, message string) error {
	f.commits = append(f.commits, message)
	return nil
}

var SuppressOutput = geminidev.WithOutput(io.Discard, io.Discard)

func testClient(t *testing.T, opts ...geminidev.ClientOption) *geminidev.Client {
	t.Helper()
	base := []geminidev.ClientOption{
		geminidev.WithConfig(geminidev.Config{Provider: geminidev.ProviderGemini, Plain: true}),
		geminidev.WithFixedResponse("Fixed response"),
		geminidev.WithInput(strings.NewReader("")),
		SuppressOutput,
	}
	client, err := geminidev.NewClient(context.Background(), append(base, opts...)...)
	if err != nil {
		t.Fatal(err)
	}
	return client
}

func TestHistory_ReturnsRecordedTurns(t *testing.T) {
	t.Parallel()
	client := testClient(t)
	if _, err := client.Ask(context.Background(), geminidev.AskOptions{Prompt: "Question?"}); err != nil {
		t.Fatal(err)
	}
	want := []geminidev.ChatMessage{
		{Role: geminidev.RoleUser, Content: "Question?"},
		{Role: geminidev.RoleModel, Content: "Fixed response"},
	}
	got := client.History()
	if !cmp.Equal(want, got) {
		t.Fatal(cmp.Diff(want, got))
	}
}

type shoutRenderer struct{}

func (shoutRenderer) Render(md string) (string, error) {
	return strings.ToUpper(md), nil
}

func TestAsk_RendersThroughRenderer(t *testing.T) {
	t.Parallel()
	out := new(bytes.Buffer)
	client := testClient(t, geminidev.WithRenderer(shoutRenderer{}), geminidev.WithOutput(out, io.Discard))
	if _, err := client.Ask(context.Background(), geminidev.AskOptions{Prompt: "hi"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "FIXED RESPONSE") {
		t.Fatalf("unexpected rendering:\n%s", out)
	}
}
