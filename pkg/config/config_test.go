package config

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("NewDefaultConfig", func() {
	It("fills every section", func() {
		cfg := NewDefaultConfig()
		Expect(cfg.Storage.Driver).To(Equal("sqlite"))
		Expect(cfg.API.Listen).To(Equal(":8080"))
		Expect(cfg.Extractor.Provider).To(Equal("ollama"))
		Expect(cfg.Extractor.Model).To(Equal("llama3.2"))
		Expect(cfg.Extractor.TimeoutSeconds).To(Equal(uint(30)))
		Expect(cfg.EventStream.Provider).To(Equal("nop"))
		Expect(cfg.EventStream.Topic).To(Equal("recall.ingest"))
		Expect(cfg.Pack.MaxNodes).To(Equal(uint(200)))
	})
})

var _ = Describe("ParseConfigTOML", func() {
	It("parses sectioned keys", func() {
		cfg, err := ParseConfigTOML([]byte(`
[storage]
driver = "postgres"
postgres_url = "postgres://localhost:5432/recall"

[pack]
max_nodes = 50
`))
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Storage.Driver).To(Equal("postgres"))
		Expect(cfg.Storage.PostgresURL).To(Equal("postgres://localhost:5432/recall"))
		Expect(cfg.Pack.MaxNodes).To(Equal(uint(50)))
	})

	It("rejects unsupported versions", func() {
		_, err := ParseConfigTOML([]byte("version = 99\n"))
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("unsupported config version"))
	})

	It("rejects malformed TOML", func() {
		_, err := ParseConfigTOML([]byte("storage = [broken"))
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Configer", func() {
	var (
		dir    string
		cfger  *Configer
		newErr error
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		cfger, newErr = NewConfiger(dir)
		Expect(newErr).NotTo(HaveOccurred())
	})

	It("targets config.toml inside the override directory", func() {
		Expect(cfger.GetTarget()).To(Equal(filepath.Join(dir, "config.toml")))
	})

	It("loads defaults when no file exists", func() {
		cfg, err := cfger.LoadConfig()
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Storage.Driver).To(Equal("sqlite"))
	})

	It("round-trips set and get", func() {
		Expect(cfger.SetConfigValue("storage.driver", "postgres")).To(Succeed())

		value, err := cfger.GetConfigValue("storage.driver")
		Expect(err).NotTo(HaveOccurred())
		Expect(value).To(Equal("postgres"))

		// The write is persistent, not just in-memory.
		reloaded, err := NewConfiger(dir)
		Expect(err).NotTo(HaveOccurred())
		value, err = reloaded.GetConfigValue("storage.driver")
		Expect(err).NotTo(HaveOccurred())
		Expect(value).To(Equal("postgres"))
	})

	It("keeps defaults for fields the file does not set", func() {
		Expect(cfger.SetConfigValue("api.listen", ":9090")).To(Succeed())

		cfg, err := cfger.LoadConfig()
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.API.Listen).To(Equal(":9090"))
		Expect(cfg.Extractor.Provider).To(Equal("ollama"))
	})

	It("validates numeric keys", func() {
		Expect(cfger.SetConfigValue("pack.max_nodes", "not-a-number")).NotTo(Succeed())
		Expect(cfger.SetConfigValue("pack.max_nodes", "150")).To(Succeed())

		value, err := cfger.GetConfigValue("pack.max_nodes")
		Expect(err).NotTo(HaveOccurred())
		Expect(value).To(Equal("150"))
	})

	It("rejects unknown keys", func() {
		Expect(cfger.SetConfigValue("nope.nope", "x")).NotTo(Succeed())
		_, err := cfger.GetConfigValue("nope.nope")
		Expect(err).To(HaveOccurred())
	})

	It("saves files readable only by the owner", func() {
		Expect(cfger.SetConfigValue("extractor.api_key", "sk-secret")).To(Succeed())

		info, err := os.Stat(cfger.GetTarget())
		Expect(err).NotTo(HaveOccurred())
		Expect(info.Mode().Perm()).To(Equal(os.FileMode(0o600)))
	})
})

var _ = Describe("PresetConfig", func() {
	It("configures the anthropic preset", func() {
		cfg, err := PresetConfig("anthropic")
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Extractor.Provider).To(Equal("anthropic"))
		Expect(cfg.Extractor.Target).To(Equal("https://api.anthropic.com"))
	})

	It("leaves ollama as the default preset", func() {
		cfg, err := PresetConfig("ollama")
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Extractor.Provider).To(Equal("ollama"))
	})

	It("rejects unknown presets", func() {
		_, err := PresetConfig("watson")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("ValidConfigKeys", func() {
	It("covers every key in the registry", func() {
		keys := ValidConfigKeys()
		Expect(keys).To(HaveLen(len(configKeys)))
		for _, k := range keys {
			Expect(IsValidConfigKey(k)).To(BeTrue(), k)
		}
	})
})
