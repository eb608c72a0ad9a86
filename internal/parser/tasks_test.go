package parser

import (
	"reflect"
	"testing"

	"github.com/starford/ansuz/internal/models"
)

func buildFromContent(t *testing.T, path, content string) []models.Task {
	t.Helper()
	return BuildTasks(path, Parse(path, content).Tasks)
}

func taskByText(t *testing.T, tasks []models.Task, text string) models.Task {
	t.Helper()
	for _, task := range tasks {
		if task.Text == text {
			return task
		}
	}
	t.Fatalf("no task with text %q in %v", text, tasks)
	return models.Task{}
}

func TestBuildTasks_InheritanceAndActionable(t *testing.T) {
	content := "- [ ] Organize party <2017-08-19 !!\n" +
		"    - [ ] Send invitations by first of month <2017-08-01 !!\n" +
		"    - [ ] Cleanup living room\n" +
		"        - [ ] Get rid of moving boxes <2017-08-10\n" +
		"        - [ ] Buy vacuum cleaner <2017-08-15\n" +
		"    - [ ] Buy food & drinks\n"
	tasks := buildFromContent(t, "/Party/Party.md", content)
	if len(tasks) != 6 {
		t.Fatalf("got %d tasks, want 6", len(tasks))
	}

	party := taskByText(t, tasks, "Organize party")
	if party.Parent != "" || party.Level != 0 {
		t.Errorf("root task: parent %q level %d", party.Parent, party.Level)
	}
	if party.Priority != 2 || party.Due != "2017-08-19" {
		t.Errorf("root task: priority %d due %q", party.Priority, party.Due)
	}
	if party.Actionable {
		t.Error("root task with open descendants must not be actionable")
	}

	invitations := taskByText(t, tasks, "Send invitations by first of month")
	if invitations.Priority != 2 || invitations.Due != "2017-08-01" {
		t.Errorf("explicit values lost: priority %d due %q", invitations.Priority, invitations.Due)
	}
	if !invitations.Actionable {
		t.Error("leaf open task must be actionable")
	}

	cleanup := taskByText(t, tasks, "Cleanup living room")
	if cleanup.Priority != 2 || cleanup.Due != "2017-08-19" {
		t.Errorf("inheritance: priority %d due %q", cleanup.Priority, cleanup.Due)
	}
	if cleanup.Actionable {
		t.Error("task with open children must not be actionable")
	}
	if cleanup.Parent != party.ID || cleanup.Level != 1 {
		t.Errorf("cleanup: parent %q level %d", cleanup.Parent, cleanup.Level)
	}

	food := taskByText(t, tasks, "Buy food & drinks")
	if food.Priority != 2 || food.Due != "2017-08-19" || !food.Actionable {
		t.Errorf("food: priority %d due %q actionable %v", food.Priority, food.Due, food.Actionable)
	}

	boxes := taskByText(t, tasks, "Get rid of moving boxes")
	if boxes.Parent != cleanup.ID || boxes.Level != 2 {
		t.Errorf("boxes: parent %q level %d", boxes.Parent, boxes.Level)
	}
	if boxes.Due != "2017-08-10" || !boxes.Actionable {
		t.Errorf("boxes: due %q actionable %v", boxes.Due, boxes.Actionable)
	}
}

func TestBuildTasks_ParentFlipsActionableWhenChildrenDone(t *testing.T) {
	content := "- [ ] Parent !\n" +
		"    - [x] Child one\n" +
		"    - [x] Child two\n"
	tasks := buildFromContent(t, "/P/P.md", content)
	parent := taskByText(t, tasks, "Parent")
	if !parent.Actionable {
		t.Error("parent with only done children must be actionable")
	}
	if parent.Priority != 1 {
		t.Errorf("Priority = %d", parent.Priority)
	}
	for _, text := range []string{"Child one", "Child two"} {
		if child := taskByText(t, tasks, text); child.Actionable {
			t.Errorf("done child %q must not be actionable", text)
		}
	}
}

func TestBuildTasks_DoneDescendantDeepDoesNotBlock(t *testing.T) {
	content := "- [ ] A\n" +
		"    - [x] B\n" +
		"        - [x] C\n"
	tasks := buildFromContent(t, "/P/P.md", content)
	if a := taskByText(t, tasks, "A"); !a.Actionable {
		t.Error("A must be actionable when the whole subtree is done")
	}
}

func TestBuildTasks_OpenGrandchildBlocksRoot(t *testing.T) {
	content := "- [ ] A\n" +
		"    - [x] B\n" +
		"        - [ ] C\n"
	tasks := buildFromContent(t, "/P/P.md", content)
	if a := taskByText(t, tasks, "A"); a.Actionable {
		t.Error("open grandchild must block the root")
	}
	if c := taskByText(t, tasks, "C"); !c.Actionable {
		t.Error("open leaf must be actionable")
	}
}

func TestBuildTasks_TagsUnionWithAncestors(t *testing.T) {
	content := "- [ ] Parent @home\n" +
		"    - [ ] Child @errands\n"
	tasks := buildFromContent(t, "/P/P.md", content)
	child := taskByText(t, tasks, "Child")
	want := []string{"errands", "home"}
	if !reflect.DeepEqual(child.Tags, want) {
		t.Errorf("Tags = %v, want %v", child.Tags, want)
	}
}

func TestBuildTasks_StartDateNotInherited(t *testing.T) {
	content := "- [ ] Parent >2025-01-01\n" +
		"    - [ ] Child\n"
	tasks := buildFromContent(t, "/P/P.md", content)
	if child := taskByText(t, tasks, "Child"); child.Start != "" {
		t.Errorf("Start = %q, want empty", child.Start)
	}
	if parent := taskByText(t, tasks, "Parent"); parent.Start != "2025-01-01" {
		t.Errorf("Start = %q", parent.Start)
	}
}

func TestBuildTasks_PriorityCappedAtThree(t *testing.T) {
	tasks := buildFromContent(t, "/P/P.md", "- [ ] Urgent !!!!!\n")
	if got := tasks[0].Priority; got != 3 {
		t.Errorf("Priority = %d, want 3", got)
	}
}

func TestBuildTasks_InvalidDateDropped(t *testing.T) {
	tasks := buildFromContent(t, "/P/P.md", "- [ ] Thing <2025-13-40\n")
	if tasks[0].Due != "" {
		t.Errorf("Due = %q, want empty", tasks[0].Due)
	}
}

func TestBuildTasks_SiblingAfterDedentFindsCorrectParent(t *testing.T) {
	content := "- [ ] A\n" +
		"    - [ ] A1\n" +
		"        - [ ] A1a\n" +
		"    - [ ] A2\n" +
		"- [ ] B\n"
	tasks := buildFromContent(t, "/P/P.md", content)
	a := taskByText(t, tasks, "A")
	a2 := taskByText(t, tasks, "A2")
	b := taskByText(t, tasks, "B")
	if a2.Parent != a.ID || a2.Level != 1 {
		t.Errorf("A2: parent %q level %d", a2.Parent, a2.Level)
	}
	if b.Parent != "" || b.Level != 0 {
		t.Errorf("B: parent %q level %d", b.Parent, b.Level)
	}
}

func TestBuildTasks_IDEncodesPathAndLine(t *testing.T) {
	tasks := buildFromContent(t, "/Party/Party.md", "intro\n- [ ] First\n")
	if got := tasks[0].ID; got != "/Party/Party.md:2" {
		t.Errorf("ID = %q", got)
	}
}
