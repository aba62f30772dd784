package genie_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rgeissen/uderia-sub003/events"
	"github.com/rgeissen/uderia-sub003/genie"
	"github.com/rgeissen/uderia-sub003/llm"
	"github.com/rgeissen/uderia-sub003/remote"
)

var _ = Describe("Coordinator", func() {
	var (
		server   *expertServer
		cache    *genie.SessionCache
		provider *scriptedProvider
	)

	genieProfile := genie.Profile{ID: "coordinator_profile", Tag: "coordinator", Type: "genie"}
	mathSlave := genie.Profile{ID: "math_profile", Tag: "math", DisplayName: "Math Expert", Type: "tool_enabled"}
	financeSlave := genie.Profile{ID: "finance_profile", Tag: "finance", DisplayName: "Finance Expert", Type: "rag_focused"}

	newOptions := func() genie.CoordinatorOptions {
		return genie.CoordinatorOptions{
			GenieProfile:    genieProfile,
			Slaves:          []genie.Profile{mathSlave, financeSlave},
			Provider:        provider,
			Model:           "test-model",
			Remote:          remote.NewClient(server.URL(), "token"),
			Cache:           cache,
			Config:          genie.Config{PollInterval: time.Millisecond, MaxPolls: 10},
			ParentSessionID: "parent-1",
		}
	}

	BeforeEach(func() {
		server = newExpertServer("The answer is 4.")
		cache = genie.NewSessionCache()
		provider = &scriptedProvider{}
	})

	AfterEach(func() {
		server.Close()
	})

	Describe("construction", func() {
		It("rejects a missing provider", func() {
			opts := newOptions()
			opts.Provider = nil
			_, err := genie.NewCoordinator(opts)

			var cfgErr *genie.ConfigurationError
			Expect(errors.As(err, &cfgErr)).To(BeTrue())
			Expect(cfgErr.Reason).To(Equal("no LLM model configured"))
		})

		It("rejects an empty slave list", func() {
			opts := newOptions()
			opts.Slaves = nil
			_, err := genie.NewCoordinator(opts)

			var cfgErr *genie.ConfigurationError
			Expect(errors.As(err, &cfgErr)).To(BeTrue())
			Expect(cfgErr.Reason).To(Equal("empty slave profile list"))
		})

		It("rejects a nesting level at the depth limit and emits an error event", func() {
			collector := events.NewCollector()
			opts := newOptions()
			opts.Sink = collector
			opts.Level = 2

			_, err := genie.NewCoordinator(opts)

			var depthErr *genie.DepthExceededError
			Expect(errors.As(err, &depthErr)).To(BeTrue())
			Expect(depthErr.Level).To(Equal(2))
			Expect(depthErr.MaxDepth).To(Equal(2))

			Expect(collector.Len()).To(Equal(1))
			Expect(collector.Events()[0].Type).To(Equal(events.TypeCoordinationError))
			Expect(server.sessionCount()).To(BeZero())
		})

		It("allows a nested coordinator below the depth limit", func() {
			opts := newOptions()
			opts.Level = 1
			_, err := genie.NewCoordinator(opts)
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("Execute", func() {
		It("routes to an expert and synthesizes the answer", func() {
			provider.responses = []string{
				"<REASONING>Ask the math expert.</REASONING>\n" +
					"<ACTION>ask_math</ACTION>\n" +
					`<ACTION_INPUT>{"query": "What is 2+2?"}</ACTION_INPUT>`,
				"<ANSWER>Two plus two equals 4.</ANSWER>",
			}

			coord, err := genie.NewCoordinator(newOptions())
			Expect(err).NotTo(HaveOccurred())

			result := coord.Execute(context.Background(), "What is 2+2?", nil)
			Expect(result.Success).To(BeTrue())
			Expect(result.Response).To(Equal("Two plus two equals 4."))
			Expect(result.ToolsUsed).To(Equal([]string{"ask_math"}))
			Expect(result.SlaveSessionsUsed).To(HaveKeyWithValue("math", "slave-1"))
			Expect(result.SlaveSessionsUsed).NotTo(HaveKey("finance"))
			Expect(result.InputTokens).To(Equal(20))
			Expect(result.OutputTokens).To(Equal(10))

			Expect(server.queries()).To(ConsistOf("What is 2+2?"))

			types := eventTypes(result.Events)
			Expect(types[0]).To(Equal(events.TypeCoordinationStart))
			Expect(types[len(types)-1]).To(Equal(events.TypeCoordinationComplete))
			Expect(types).To(ContainElement(events.TypeSynthesisStart))

			complete := result.Events[len(result.Events)-1]
			Expect(complete.Payload["success"]).To(BeTrue())
			Expect(complete.Payload["profiles_used"]).To(Equal([]string{"math"}))
		})

		It("answers directly when the model never requests an expert", func() {
			provider.responses = []string{"<ANSWER>No expert needed.</ANSWER>"}

			coord, err := genie.NewCoordinator(newOptions())
			Expect(err).NotTo(HaveOccurred())

			result := coord.Execute(context.Background(), "hello", nil)
			Expect(result.Success).To(BeTrue())
			Expect(result.Response).To(Equal("No expert needed."))
			Expect(result.ToolsUsed).To(BeEmpty())
			Expect(result.SlaveSessionsUsed).To(BeEmpty())
			Expect(server.sessionCount()).To(BeZero())
		})

		It("falls back to raw content when no answer tag is emitted", func() {
			provider.responses = []string{"  Plain text answer.  "}

			coord, err := genie.NewCoordinator(newOptions())
			Expect(err).NotTo(HaveOccurred())

			result := coord.Execute(context.Background(), "hello", nil)
			Expect(result.Success).To(BeTrue())
			Expect(result.Response).To(Equal("Plain text answer."))
		})

		It("feeds an unknown expert name back as an observation", func() {
			provider.responses = []string{
				"<ACTION>ask_nobody</ACTION>\n<ACTION_INPUT>{\"query\": \"x\"}</ACTION_INPUT>",
				"<ANSWER>Recovered.</ANSWER>",
			}

			coord, err := genie.NewCoordinator(newOptions())
			Expect(err).NotTo(HaveOccurred())

			result := coord.Execute(context.Background(), "hello", nil)
			Expect(result.Success).To(BeTrue())
			Expect(result.Response).To(Equal("Recovered."))
			Expect(result.ToolsUsed).To(BeEmpty())
			Expect(server.sessionCount()).To(BeZero())

			secondRequest := provider.requests[1]
			lastMsg := secondRequest.Messages[len(secondRequest.Messages)-1]
			Expect(lastMsg.Content).To(ContainSubstring("unknown expert 'ask_nobody'"))
			Expect(lastMsg.Content).To(ContainSubstring("ask_math"))
		})

		It("forces a final synthesis when the iteration budget runs out", func() {
			opts := newOptions()
			opts.Config.MaxIterations = 1
			provider.responses = []string{
				"<ACTION>ask_math</ACTION>\n<ACTION_INPUT>{\"query\": \"step\"}</ACTION_INPUT>",
				"<ANSWER>Best effort answer.</ANSWER>",
			}

			coord, err := genie.NewCoordinator(opts)
			Expect(err).NotTo(HaveOccurred())

			result := coord.Execute(context.Background(), "hello", nil)
			Expect(result.Success).To(BeTrue())
			Expect(result.Response).To(Equal("Best effort answer."))

			finalRequest := provider.requests[len(provider.requests)-1]
			lastMsg := finalRequest.Messages[len(finalRequest.Messages)-1]
			Expect(lastMsg.Content).To(ContainSubstring("Provide your final <ANSWER> now"))
		})

		It("degrades to a failure answer when the model errors", func() {
			provider.err = fmt.Errorf("provider unreachable")

			coord, err := genie.NewCoordinator(newOptions())
			Expect(err).NotTo(HaveOccurred())

			result := coord.Execute(context.Background(), "hello", nil)
			Expect(result.Success).To(BeFalse())
			Expect(result.Response).To(ContainSubstring("Coordination failed"))

			complete := result.Events[len(result.Events)-1]
			Expect(complete.Type).To(Equal(events.TypeCoordinationComplete))
			Expect(complete.Payload["success"]).To(BeFalse())
		})

		It("lists all experts in the system prompt", func() {
			provider.responses = []string{"<ANSWER>ok</ANSWER>"}

			coord, err := genie.NewCoordinator(newOptions())
			Expect(err).NotTo(HaveOccurred())
			coord.Execute(context.Background(), "hello", nil)

			system := provider.requests[0].Messages[0]
			Expect(system.Role).To(Equal(llm.RoleSystem))
			Expect(system.Content).To(ContainSubstring("ask_math"))
			Expect(system.Content).To(ContainSubstring("ask_finance"))
		})

		It("seeds prior history before the first round", func() {
			provider.responses = []string{"<ANSWER>ok</ANSWER>"}
			history := []llm.Message{
				{Role: llm.RoleUser, Content: "earlier question"},
				{Role: llm.RoleAssistant, Content: "earlier answer"},
			}

			coord, err := genie.NewCoordinator(newOptions())
			Expect(err).NotTo(HaveOccurred())
			coord.Execute(context.Background(), "follow-up", history)

			msgs := provider.requests[0].Messages
			contents := make([]string, len(msgs))
			for i, m := range msgs {
				contents[i] = m.Content
			}
			Expect(contents).To(ContainElement("earlier question"))
			Expect(contents).To(ContainElement("earlier answer"))
		})
	})
})
