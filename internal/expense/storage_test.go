package expense

import (
	"os"
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
		tmpDir = GinkgoT().TempDir()
		var err error
		storage, err = NewLocalStorage(tmpDir)
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Save", func() {
		var (
			key      string
			savedKey string
			err      error
		)

		BeforeEach(func() {
			key = "user-1/exp_receipt.jpg"
		})

		JustBeforeEach(func() {
			savedKey, err = storage.Save(key, []byte("test file content"))
		})

		When("saving succeeds", func() {
			It("should return the key", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(savedKey).To(Equal(key))
			})

			It("should create the user directory", func() {
				Expect(filepath.Join(tmpDir, "user-1", "exp_receipt.jpg")).To(BeAnExistingFile())
			})
		})

		When("the key escapes the base directory", func() {
			BeforeEach(func() {
				key = "../outside.jpg"
			})

			It("should return an error", func() {
				Expect(err).To(MatchError(ContainSubstring("invalid storage key")))
				Expect(filepath.Join(filepath.Dir(tmpDir), "outside.jpg")).NotTo(BeAnExistingFile())
			})
		})

		When("the key is absolute", func() {
			BeforeEach(func() {
				key = "/tmp/outside.jpg"
			})

			It("should return an error", func() {
				Expect(err).To(HaveOccurred())
			})
		})
	})

	Describe("Get", func() {
		When("the file exists", func() {
			BeforeEach(func() {
				Expect(os.MkdirAll(filepath.Join(tmpDir, "user-1"), 0755)).To(Succeed())
				Expect(os.WriteFile(filepath.Join(tmpDir, "user-1", "r.png"), []byte("png"), 0644)).To(Succeed())
			})

			It("should return its data", func() {
				data, err := storage.Get("user-1/r.png")
				Expect(err).NotTo(HaveOccurred())
				Expect(data).To(Equal([]byte("png")))
			})
		})

		When("the file does not exist", func() {
			It("should return an error", func() {
				_, err := storage.Get("user-1/missing.png")
				Expect(err).To(MatchError(ContainSubstring("reading file")))
			})
		})
	})

	Describe("Delete", func() {
		When("the file exists", func() {
			BeforeEach(func() {
				_, err := storage.Save("user-1/r.png", []byte("png"))
				Expect(err).NotTo(HaveOccurred())
			})

			It("should remove it", func() {
				Expect(storage.Delete("user-1/r.png")).To(Succeed())
				Expect(filepath.Join(tmpDir, "user-1", "r.png")).NotTo(BeAnExistingFile())
			})
		})

		When("the file does not exist", func() {
			It("should return an error", func() {
				Expect(storage.Delete("user-1/missing.png")).To(MatchError(ContainSubstring("deleting file")))
			})
		})
	})
})
