package expense_test

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/expense-tracker/internal/expense"
	"github.com/zombor/expense-tracker/internal/scanning"
)

var _ = Describe("Integration", func() {
	var (
		db        *expense.BoltDB
		store     *expense.LocalStorage
		ocrKey    string
		ocrServer *ghttp.Server
		parser    *scanning.Parser
		appServer *ghttp.Server
	)

	uploadReceipt := func(filename string, data []byte) (int, map[string]any) {
		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		part, err := writer.CreateFormFile("receipt", filename)
		Expect(err).NotTo(HaveOccurred())
		_, err = part.Write(data)
		Expect(err).NotTo(HaveOccurred())
		Expect(writer.Close()).To(Succeed())

		resp, err := http.Post(appServer.URL()+"/api/expenses/parse", writer.FormDataContentType(), body)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		var parsed map[string]any
		Expect(json.Unmarshal(respBody, &parsed)).To(Succeed())
		return resp.StatusCode, parsed
	}

	BeforeEach(func() {
		tempDir := GinkgoT().TempDir()

		var err error
		db, err = expense.NewBoltDB(filepath.Join(tempDir, "test.db"))
		Expect(err).NotTo(HaveOccurred())

		store, err = expense.NewLocalStorage(filepath.Join(tempDir, "receipts"))
		Expect(err).NotTo(HaveOccurred())

		ocrKey = ""
		ocrServer = ghttp.NewServer()
		appServer = ghttp.NewServer()
	})

	JustBeforeEach(func() {
		ocr := scanning.NewOCRSpace(scanning.OCRSpaceConfig{
			APIKey: ocrKey,
			URL:    ocrServer.URL() + "/parse/image",
		}, nil)
		parser = scanning.NewParser(ocr, nil)

		service := expense.NewService(db, parser, store)
		server := expense.NewServer(service, expense.BasicAuth{})
		appServer.AppendHandlers(server.ServeHTTP, server.ServeHTTP)
	})

	AfterEach(func() {
		appServer.Close()
		ocrServer.Close()
		parser.Close()
		db.Close()
	})

	When("OCR is not configured", func() {
		It("should return an empty result for an image upload", func() {
			status, parsed := uploadReceipt("photo.jpg", []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00"))

			Expect(status).To(Equal(http.StatusOK))
			Expect(parsed).To(HaveKeyWithValue("vendor", BeNil()))
			Expect(parsed).To(HaveKeyWithValue("date", BeNil()))
			Expect(parsed).To(HaveKeyWithValue("amount", BeNil()))
			Expect(parsed).To(HaveKeyWithValue("category", "Other"))
			Expect(parsed).To(HaveKeyWithValue("error", scanning.UnavailableMessage))
			Expect(ocrServer.ReceivedRequests()).To(BeEmpty())
		})
	})

	When("OCR reads a receipt the user already saved", func() {
		BeforeEach(func() {
			ocrKey = "test-key"
			ocrServer.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest("POST", "/parse/image"),
				ghttp.VerifyHeaderKV("apikey", "test-key"),
				ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
					"ParsedResults": []map[string]any{
						{"ParsedText": "CORNER DELI\n03/05/2024\nSandwich 8.00\nTotal: $10.00"},
					},
					"IsErroredOnProcessing": false,
				}),
			))
		})

		It("should extract the fields and flag the duplicate", func() {
			createBody := `{"amount":"10.00","vendor":"CORNER DELI","category":"Meals","date":"2024-03-05"}`
			resp, err := http.Post(appServer.URL()+"/api/expenses", "application/json", bytes.NewBufferString(createBody))
			Expect(err).NotTo(HaveOccurred())
			var saved expense.Expense
			Expect(json.NewDecoder(resp.Body).Decode(&saved)).To(Succeed())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))

			status, parsed := uploadReceipt("photo.jpg", []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00"))

			Expect(status).To(Equal(http.StatusOK))
			Expect(parsed).To(HaveKeyWithValue("vendor", "CORNER DELI"))
			Expect(parsed).To(HaveKeyWithValue("date", "2024-03-05"))
			Expect(parsed).To(HaveKeyWithValue("amount", "10.00"))
			Expect(parsed).To(HaveKeyWithValue("isDuplicate", true))
			Expect(parsed).To(HaveKeyWithValue("duplicateId", saved.ID))
			Expect(ocrServer.ReceivedRequests()).To(HaveLen(1))
		})
	})
})
