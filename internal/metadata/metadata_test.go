package metadata

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Validate", func() {
	var (
		fields Fields
		errs   Errors
	)

	JustBeforeEach(func() {
		errs = Validate(fields)
	})

	When("some fields are empty or blank", func() {
		BeforeEach(func() {
			fields = Fields{Input1: "", Input2: "x", Input3: "  ", Input4: "y"}
		})

		It("should report exactly the empty fields", func() {
			Expect(errs).To(HaveLen(2))
			Expect(errs).To(HaveKey("input1"))
			Expect(errs).To(HaveKey("input3"))
		})

		It("should use the required message", func() {
			Expect(errs["input1"]).To(Equal("Input 1 is required."))
			Expect(errs["input3"]).To(Equal("Input 3 is required."))
		})

		It("should not map passing fields to empty messages", func() {
			Expect(errs).NotTo(HaveKey("input2"))
			Expect(errs).NotTo(HaveKey("input4"))
		})
	})

	When("every field is filled", func() {
		BeforeEach(func() {
			fields = Fields{Input1: "SO-1", Input2: "Ann", Input3: "a", Input4: "b"}
		})

		It("should return no errors", func() {
			Expect(errs).To(BeEmpty())
		})
	})

	When("every field is blank", func() {
		BeforeEach(func() {
			fields = Fields{Input1: "\t", Input2: "\n", Input3: " ", Input4: ""}
		})

		It("should report all four fields", func() {
			Expect(errs).To(HaveLen(4))
		})
	})

	It("should never merge results across calls", func() {
		first := Validate(Fields{})
		Expect(first).To(HaveLen(4))

		second := Validate(Fields{Input1: "a", Input2: "b", Input3: "c"})
		Expect(second).To(Equal(Errors{"input4": "Input 4 is required."}))
		Expect(first).To(HaveLen(4))
	})
})

var _ = Describe("Fields", func() {
	It("should trim every field", func() {
		f := Fields{Input1: " a ", Input2: "b\n", Input3: "\tc", Input4: "d"}
		Expect(f.Trimmed()).To(Equal(Fields{Input1: "a", Input2: "b", Input3: "c", Input4: "d"}))
	})
})

var _ = Describe("IsField", func() {
	It("should accept form fields only", func() {
		Expect(IsField("input2")).To(BeTrue())
		Expect(IsField("input5")).To(BeFalse())
	})
})
