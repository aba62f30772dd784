package config_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rgeissen/uderia-sub003/config"
)

var _ = Describe("Config Loading", func() {

	Describe("Load", func() {
		It("routes to LoadFile for a file path", func() {
			_, f := writeFixture("vars.hcl", `variable "x" { default = "val" }`)
			cfg, err := config.Load(f)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Variables).To(HaveLen(1))
			Expect(cfg.Variables[0].Name).To(Equal("x"))
		})

		It("routes to LoadDir for a directory path", func() {
			dir := writeFixtures(map[string]string{
				"variables.hcl": `variable "a" { default = "1" }`,
				"models.hcl":    minimalVarsHCL() + minimalModelHCL(),
				"readme.txt":    "not HCL",
			})
			cfg, err := config.Load(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Models).To(HaveLen(1))
			Expect(len(cfg.Variables)).To(BeNumerically(">=", 2))
		})

		It("returns an error for a nonexistent path", func() {
			_, err := config.Load("/nonexistent/path/config.hcl")
			Expect(err).To(HaveOccurred())
		})

		It("returns a parse error for invalid HCL", func() {
			_, f := writeFixture("bad.hcl", `profile { missing label`)
			_, err := config.LoadFile(f)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("staged evaluation", func() {
		It("resolves variable references in model blocks", func() {
			_, f := writeFixture("config.hcl", minimalVarsHCL()+minimalModelHCL())
			cfg, err := config.LoadFile(f)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Models[0].APIKey).To(Equal("test-key-123"))
		})

		It("resolves variable references in the remote block", func() {
			_, f := writeFixture("config.hcl", minimalVarsHCL()+remoteHCL())
			cfg, err := config.LoadFile(f)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Remote).NotTo(BeNil())
			Expect(cfg.Remote.Token).To(Equal("test-key-123"))
		})

		It("populates ResolvedVars from variable defaults", func() {
			_, f := writeFixture("config.hcl", `variable "app_name" { default = "uderia" }`)
			cfg, err := config.LoadFile(f)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.ResolvedVars).To(HaveKey("app_name"))
			Expect(cfg.ResolvedVars["app_name"].AsString()).To(Equal("uderia"))
		})
	})

	Describe("profile blocks", func() {
		It("decodes a genie profile with its genie block", func() {
			_, f := writeFixture("config.hcl", fullBaseHCL())
			cfg, err := config.LoadFile(f)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Profiles).To(HaveLen(2))

			genie, ok := cfg.ProfileByTag("coordinator")
			Expect(ok).To(BeTrue())
			Expect(genie.Name).To(Equal("coordinator_profile"))
			Expect(genie.Type).To(Equal(config.TypeGenie))
			Expect(genie.Slaves).To(Equal([]string{"finance"}))
			Expect(genie.Genie).NotTo(BeNil())
			Expect(genie.Genie.Temperature).To(Equal(0.2))
			Expect(genie.Genie.QueryTimeoutSeconds).To(Equal(120))
			Expect(genie.Genie.MaxIterations).To(Equal(6))
		})

		It("resolves slave profiles in declaration order", func() {
			hcl := minimalVarsHCL() + minimalModelHCL() + expertProfileHCL() + `
profile "math_profile" {
  tag   = "math"
  type  = "llm_only"
  model = "claude_sonnet_4"
}

profile "coordinator_profile" {
  tag    = "coordinator"
  type   = "genie"
  model  = "claude_sonnet_4"
  slaves = ["math", "finance"]
}
` + remoteHCL()
			_, f := writeFixture("config.hcl", hcl)
			cfg, err := config.LoadFile(f)
			Expect(err).NotTo(HaveOccurred())

			genie, _ := cfg.ProfileByTag("coordinator")
			slaves, err := cfg.SlaveProfiles(genie)
			Expect(err).NotTo(HaveOccurred())
			Expect(slaves).To(HaveLen(2))
			Expect(slaves[0].Tag).To(Equal("math"))
			Expect(slaves[1].Tag).To(Equal("finance"))
		})
	})

	Describe("remote and storage blocks", func() {
		It("applies remote timeout defaults", func() {
			_, f := writeFixture("config.hcl", minimalVarsHCL()+remoteHCL())
			cfg, err := config.LoadFile(f)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Remote.CreateTimeoutSeconds).To(Equal(60))
			Expect(cfg.Remote.SubmitTimeoutSeconds).To(Equal(300))
			Expect(cfg.Remote.StatusTimeoutSeconds).To(Equal(30))
		})

		It("rejects duplicate remote blocks", func() {
			_, f := writeFixture("config.hcl", minimalVarsHCL()+remoteHCL()+remoteHCL())
			_, err := config.LoadFile(f)
			Expect(err).To(MatchError(ContainSubstring("duplicate remote block")))
		})

		It("defaults storage to the memory backend", func() {
			_, f := writeFixture("config.hcl", minimalVarsHCL())
			cfg, err := config.LoadFile(f)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Storage).NotTo(BeNil())
			Expect(cfg.Storage.Backend).To(Equal("memory"))
		})

		It("decodes an explicit storage block", func() {
			hcl := `
storage {
  backend = "sqlite"
  path    = "/tmp/uderia-test.db"
}
`
			_, f := writeFixture("config.hcl", hcl)
			cfg, err := config.LoadFile(f)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Storage.Backend).To(Equal("sqlite"))
			Expect(cfg.Storage.Path).To(Equal("/tmp/uderia-test.db"))
		})
	})

	Describe("default_profile", func() {
		It("decodes the top-level attribute", func() {
			_, f := writeFixture("config.hcl", fullBaseHCL()+`default_profile = "coordinator"`)
			cfg, err := config.LoadFile(f)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.DefaultProfile).To(Equal("coordinator"))
		})
	})

	Describe("plugin blocks", func() {
		It("decodes a plugin with settings", func() {
			hcl := minimalVarsHCL() + `
plugin "datetools" {
  source  = "github.com/example/uderia-plugin-datetools"
  version = "v1.2.0"

  settings {
    timezone = "UTC"
  }
}
`
			_, f := writeFixture("config.hcl", hcl)
			cfg, err := config.LoadFile(f)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Plugins).To(HaveLen(1))
			Expect(cfg.Plugins[0].Name).To(Equal("datetools"))
			Expect(cfg.Plugins[0].Version).To(Equal("v1.2.0"))
			Expect(cfg.Plugins[0].Settings).To(HaveKeyWithValue("timezone", "UTC"))
		})
	})
})
