package expense

import (
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LocalStorage", func() {
	var (
		tmpDir  string
		storage Storage
	)

	BeforeEach(func() {
		tmpDir = filepath.Join(GinkgoT().TempDir(), "bonnen")
		var err error
		storage, err = NewLocalStorage(tmpDir)
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Save", func() {
		It("writes the file in the base directory", func() {
			name, err := storage.Save("id-1_bon.jpg", []byte("jpeg"))
			Expect(err).NotTo(HaveOccurred())
			Expect(name).To(Equal("id-1_bon.jpg"))
			Expect(filepath.Join(tmpDir, "id-1_bon.jpg")).To(BeAnExistingFile())
		})

		DescribeTable("rejects names outside the base directory",
			func(name string) {
				_, err := storage.Save(name, []byte("x"))
				Expect(err).To(MatchError(ErrInvalid))
			},
			Entry("parent", "../bon.jpg"),
			Entry("nested", "sub/bon.jpg"),
			Entry("absolute", "/etc/passwd"),
			Entry("empty", ""),
			Entry("dot", "."),
		)
	})

	Describe("Get", func() {
		It("reads a saved file", func() {
			_, err := storage.Save("a.png", []byte("png"))
			Expect(err).NotTo(HaveOccurred())
			data, err := storage.Get("a.png")
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal([]byte("png")))
		})

		It("returns not found for missing files", func() {
			_, err := storage.Get("missing.png")
			Expect(err).To(MatchError(ErrNotFound))
		})

		It("rejects traversal", func() {
			_, err := storage.Get("../../etc/passwd")
			Expect(err).To(MatchError(ErrInvalid))
		})
	})

	Describe("Delete", func() {
		It("removes the file", func() {
			_, err := storage.Save("a.png", []byte("png"))
			Expect(err).NotTo(HaveOccurred())
			Expect(storage.Delete("a.png")).To(Succeed())
			Expect(filepath.Join(tmpDir, "a.png")).NotTo(BeAnExistingFile())
		})

		It("fails for missing files", func() {
			Expect(storage.Delete("missing.png")).NotTo(Succeed())
		})
	})
})
