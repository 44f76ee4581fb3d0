package graph

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("NormalizeTitle", func() {
	It("lower-cases and strips punctuation", func() {
		Expect(NormalizeTitle("Support  Offline-Mode!")).To(Equal("support offline mode"))
	})

	It("collapses runs of whitespace", func() {
		Expect(NormalizeTitle("add   dark\tmode")).To(Equal("add dark mode"))
	})

	It("maps equivalent phrasings to the same key", func() {
		Expect(NormalizeTitle("Support offline mode")).To(Equal(NormalizeTitle("support OFFLINE mode!!")))
	})

	It("keeps digits", func() {
		Expect(NormalizeTitle("Migrate to v2 API")).To(Equal("migrate to v2 api"))
	})

	It("returns empty for punctuation-only input", func() {
		Expect(NormalizeTitle("!!! --- ???")).To(Equal(""))
	})

	It("returns empty for empty input", func() {
		Expect(NormalizeTitle("")).To(Equal(""))
	})

	It("drops trailing separators", func() {
		Expect(NormalizeTitle("fix the build...")).To(Equal("fix the build"))
	})
})

var _ = Describe("IsTestPath", func() {
	It("matches Go test files", func() {
		Expect(IsTestPath("pkg/server/server_test.go")).To(BeTrue())
	})

	It("matches python test files", func() {
		Expect(IsTestPath("src/test_handlers.py")).To(BeTrue())
	})

	It("matches spec files", func() {
		Expect(IsTestPath("web/app.spec.ts")).To(BeTrue())
	})

	It("matches files under tests directories", func() {
		Expect(IsTestPath("tests/integration/api.py")).To(BeTrue())
		Expect(IsTestPath("backend/tests/integration/api.py")).To(BeTrue())
		Expect(IsTestPath("web/__tests__/app.js")).To(BeTrue())
	})

	It("does not match regular source files", func() {
		Expect(IsTestPath("pkg/server/server.go")).To(BeFalse())
		Expect(IsTestPath("src/handlers.py")).To(BeFalse())
		Expect(IsTestPath("docs/testing.md")).To(BeFalse())
	})
})

var _ = Describe("DetectLanguage", func() {
	It("maps known extensions", func() {
		Expect(DetectLanguage("pkg/server/server.go")).To(Equal("go"))
		Expect(DetectLanguage("src/app.tsx")).To(Equal("typescript"))
		Expect(DetectLanguage("lib/worker.rs")).To(Equal("rust"))
	})

	It("is case-insensitive on the extension", func() {
		Expect(DetectLanguage("README.MD")).To(Equal("markdown"))
	})

	It("returns empty for unknown extensions", func() {
		Expect(DetectLanguage("Makefile")).To(Equal(""))
		Expect(DetectLanguage("data.parquet")).To(Equal(""))
	})
})

var _ = Describe("Status", func() {
	It("treats completed, superseded, and resolved as terminal", func() {
		Expect(StatusCompleted.Terminal()).To(BeTrue())
		Expect(StatusSuperseded.Terminal()).To(BeTrue())
		Expect(StatusResolved.Terminal()).To(BeTrue())
	})

	It("treats active, blocked, and open as live", func() {
		Expect(StatusActive.Terminal()).To(BeFalse())
		Expect(StatusBlocked.Terminal()).To(BeFalse())
		Expect(StatusOpen.Terminal()).To(BeFalse())
	})
})

var _ = Describe("IsEntityType", func() {
	It("accepts the dedupable types", func() {
		for _, t := range EntityTypes() {
			Expect(IsEntityType(t)).To(BeTrue(), string(t))
		}
	})

	It("rejects interactions and artifacts", func() {
		Expect(IsEntityType(TypeInteraction)).To(BeFalse())
		Expect(IsEntityType(TypeCodeArtifact)).To(BeFalse())
	})
})
