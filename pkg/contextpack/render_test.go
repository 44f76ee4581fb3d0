package contextpack

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/recall/pkg/graph"
)

var _ = Describe("Markdown", func() {
	It("renders the header for an empty pack", func() {
		md := Markdown(emptyPack("p1"))
		Expect(md).To(HavePrefix("# Project Memory: p1\n"))
		Expect(md).NotTo(ContainSubstring("## Goals"))
	})

	It("renders sections in their fixed order", func() {
		pack := emptyPack("p1")
		pack.Goals = []*graph.Entity{{Title: "Ship v2", Status: graph.StatusActive}}
		pack.Constraints = []*graph.Entity{{Title: "Stay under 1MB"}}
		pack.PainPoints = []*graph.Entity{{Title: "Slow CI", Status: graph.StatusOpen}}
		pack.Artifacts = []*graph.CodeArtifact{{Path: "pkg/ship/ship.go", Language: "go"}}
		pack.Strategies = []*graph.Entity{{Title: "Feature flags"}}
		pack.Decisions = []*graph.Entity{{Title: "Use sqlite"}}

		md := Markdown(pack)

		order := []string{"## Goals", "## Constraints", "## Open Pain Points", "## Code Artifacts", "## Strategies", "## Decisions"}
		last := -1
		for _, section := range order {
			idx := strings.Index(md, section)
			Expect(idx).To(BeNumerically(">", last), section)
			last = idx
		}
	})

	It("renders goal priority, status, and acceptance criteria", func() {
		pack := emptyPack("p1")
		pack.Goals = []*graph.Entity{{
			Title:              "Ship v2",
			Status:             graph.StatusBlocked,
			Priority:           5,
			Body:               "the big one",
			AcceptanceCriteria: []string{"all tests green"},
		}}

		md := Markdown(pack)

		Expect(md).To(ContainSubstring("**Ship v2** (priority 5) [blocked]"))
		Expect(md).To(ContainSubstring("the big one"))
		Expect(md).To(ContainSubstring("- [ ] all tests green"))
	})

	It("shows mention counts on reinforced entities", func() {
		pack := emptyPack("p1")
		pack.Preferences = []*graph.Entity{{Title: "Use table tests", MentionCount: 4}}

		md := Markdown(pack)
		Expect(md).To(ContainSubstring("Use table tests (seen 4 times)"))
	})

	It("surfaces build errors as a section", func() {
		pack := emptyPack("p1")
		pack.Errors = []string{"graph store unavailable during neighbors: store down"}

		md := Markdown(pack)
		Expect(md).To(ContainSubstring("## Errors"))
		Expect(md).To(ContainSubstring("this pack is partial"))
	})

	It("notes truncation", func() {
		pack := emptyPack("p1")
		pack.Truncated = true

		md := Markdown(pack)
		Expect(md).To(ContainSubstring("truncated at the node budget"))
	})
})
