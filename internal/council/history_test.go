package council

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"quorum/internal/model"
)

func TestProjectHistory(t *testing.T) {
	turns := []Turn{
		{Role: model.RoleUser, Parts: []string{"what is Go?"}, Final: true},
		{
			Role:    model.RoleModel,
			Parts:   []string{"A programming language."},
			Sources: []Source{{URI: "https://go.dev", Title: "go.dev"}},
			Work:    &WorkTrace{Initial: []string{"a", "b"}, Refined: []string{"c", "d"}},
			Final:   true,
		},
		{Role: model.RoleUser, Parts: []string{"who made it?"}, Final: true},
		{Role: model.RoleModel, Parts: []string{"The council could not answer: boom"}, IsError: true, Final: true},
	}

	got := ProjectHistory(turns)
	want := []model.Message{
		{Role: model.RoleUser, Parts: []model.Part{{Text: "what is Go?"}}},
		{Role: model.RoleModel, Parts: []model.Part{{Text: "A programming language."}}},
		{Role: model.RoleUser, Parts: []model.Part{{Text: "who made it?"}}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("projection mismatch (-want +got):\n%s", diff)
	}
}

func TestProjectHistory_ImagePrecedesText(t *testing.T) {
	turns := []Turn{{
		Role:  model.RoleUser,
		Parts: []string{"what is in this picture?"},
		Image: &Attachment{MIMEType: "image/png", Data: []byte{1, 2, 3}},
		Final: true,
	}}
	got := ProjectHistory(turns)
	if len(got) != 1 || len(got[0].Parts) != 2 {
		t.Fatalf("unexpected projection %+v", got)
	}
	if got[0].Parts[0].InlineData == nil {
		t.Error("image is not the first part")
	}
	if got[0].Parts[1].Text != "what is in this picture?" {
		t.Errorf("text part %q", got[0].Parts[1].Text)
	}
}

func TestProjectHistory_Deterministic(t *testing.T) {
	turns := []Turn{
		{Role: model.RoleUser, Parts: []string{"q"}, Final: true},
		{Role: model.RoleModel, Parts: []string{"a"}, Final: true},
	}
	first := ProjectHistory(turns)
	second := ProjectHistory(turns)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("projection not stable (-first +second):\n%s", diff)
	}
}
