package genie

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("response parsing", func() {
	Describe("parseAction", func() {
		It("extracts an action and its input", func() {
			content := `<REASONING>
Need the math expert.
</REASONING>
<ACTION>ask_math</ACTION>
<ACTION_INPUT>{"query": "2+2"}</ACTION_INPUT>`

			action, input := parseAction(content)
			Expect(action).To(Equal("ask_math"))
			Expect(input).To(Equal(`{"query": "2+2"}`))
		})

		It("returns empty values when no action is present", func() {
			action, input := parseAction("<ANSWER>done</ANSWER>")
			Expect(action).To(BeEmpty())
			Expect(input).To(BeEmpty())
		})

		It("tolerates a missing input tag", func() {
			action, input := parseAction("<ACTION>ask_math</ACTION>")
			Expect(action).To(Equal("ask_math"))
			Expect(input).To(BeEmpty())
		})

		It("tolerates an unclosed action tag", func() {
			action, _ := parseAction("<ACTION>ask_math")
			Expect(action).To(Equal("ask_math"))
		})
	})

	Describe("parseAnswer", func() {
		It("extracts the answer block", func() {
			content := `<REASONING>Everything gathered.</REASONING>
<ANSWER>
The total is 42.
</ANSWER>`
			Expect(parseAnswer(content)).To(Equal("The total is 42."))
		})

		It("returns empty when no answer tag is present", func() {
			Expect(parseAnswer("just prose")).To(BeEmpty())
		})

		It("takes the rest of the text when the closing tag is missing", func() {
			Expect(parseAnswer("<ANSWER>partial text")).To(Equal("partial text"))
		})
	})
})
