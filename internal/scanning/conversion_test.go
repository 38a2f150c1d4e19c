package scanning

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func encodedImage(encode func(*bytes.Buffer, image.Image) error) []byte {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 10, B: 10, A: 255})
		}
	}
	var buf bytes.Buffer
	Expect(encode(&buf, img)).To(Succeed())
	return buf.Bytes()
}

var _ = Describe("Conversion", func() {
	Describe("isHEICFormat", func() {
		It("should detect HEIC brands", func() {
			Expect(isHEICFormat([]byte("\x00\x00\x00\x18ftypheic\x00\x00"))).To(BeTrue())
			Expect(isHEICFormat([]byte("\x00\x00\x00\x18ftypmif1\x00\x00"))).To(BeTrue())
		})

		It("should reject other ftyp brands", func() {
			Expect(isHEICFormat([]byte("\x00\x00\x00\x18ftypmp42\x00\x00"))).To(BeFalse())
		})

		It("should reject short data", func() {
			Expect(isHEICFormat([]byte("ftyp"))).To(BeFalse())
		})
	})

	Describe("isHEICMimeType", func() {
		It("should match HEIC and HEIF types", func() {
			Expect(isHEICMimeType("image/heic")).To(BeTrue())
			Expect(isHEICMimeType(" IMAGE/HEIF ")).To(BeTrue())
			Expect(isHEICMimeType("image/jpeg")).To(BeFalse())
		})
	})

	Describe("toPNG", func() {
		It("should return PNG data untouched", func() {
			data := encodedImage(func(b *bytes.Buffer, img image.Image) error { return png.Encode(b, img) })
			out, err := toPNG(data, "image/png")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal(data))
		})

		It("should re-encode JPEG as PNG", func() {
			data := encodedImage(func(b *bytes.Buffer, img image.Image) error { return jpeg.Encode(b, img, nil) })
			out, err := toPNG(data, "image/jpeg")
			Expect(err).NotTo(HaveOccurred())

			_, format, err := image.Decode(bytes.NewReader(out))
			Expect(err).NotTo(HaveOccurred())
			Expect(format).To(Equal("png"))
		})

		It("should reject unknown formats", func() {
			_, err := toPNG([]byte("definitely not an image"), "image/webp")
			Expect(err).To(MatchError(ContainSubstring("unsupported image format")))
		})
	})
})
