package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/frahmantamala/barangay-procurement/internal"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/afero"
)

func TestStorage(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Storage Suite")
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

var _ = Describe("LocalStore", func() {
	var (
		ctx    context.Context
		mem    afero.Fs
		store  *LocalStore
		logger *slog.Logger
	)

	BeforeEach(func() {
		ctx = context.Background()
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		mem = afero.NewMemMapFs()
		store = NewStoreOnFs(afero.NewBasePathFs(mem, "/uploads"), logger)
	})

	It("stores, opens and deletes a file", func() {
		p, err := store.Store(ctx, strings.NewReader("quotation"), "requests/7", "Canvass.PDF")
		Expect(err).NotTo(HaveOccurred())
		Expect(p).To(HavePrefix("requests/7/"))
		Expect(p).To(HaveSuffix(".pdf"))

		exists, err := afero.Exists(mem, "/uploads/"+p)
		Expect(err).NotTo(HaveOccurred())
		Expect(exists).To(BeTrue())

		rc, err := store.Open(ctx, p)
		Expect(err).NotTo(HaveOccurred())
		body, err := io.ReadAll(rc)
		Expect(err).NotTo(HaveOccurred())
		Expect(rc.Close()).To(Succeed())
		Expect(string(body)).To(Equal("quotation"))

		Expect(store.Delete(ctx, p)).To(Succeed())
		_, err = store.Open(ctx, p)
		Expect(err).To(MatchError(internal.ErrFileNotFound))
	})

	It("keeps directories with parent segments inside the root", func() {
		p, err := store.Store(ctx, strings.NewReader("x"), "../../etc", "passwd")
		Expect(err).NotTo(HaveOccurred())
		Expect(p).To(HavePrefix("etc/"))

		exists, err := afero.Exists(mem, "/uploads/"+p)
		Expect(err).NotTo(HaveOccurred())
		Expect(exists).To(BeTrue())
	})

	It("refuses to open paths outside the root", func() {
		Expect(afero.WriteFile(mem, "/secret.txt", []byte("s"), 0o644)).To(Succeed())

		_, err := store.Open(ctx, "../secret.txt")
		Expect(err).To(MatchError(internal.ErrFileNotFound))
	})

	It("ignores deletes of missing files", func() {
		Expect(store.Delete(ctx, "requests/1/missing.pdf")).To(Succeed())
	})

	It("removes partial files when the upload fails", func() {
		_, err := store.Store(ctx, failingReader{}, "requests/2", "a.pdf")
		Expect(err).To(HaveOccurred())

		entries, err := afero.ReadDir(mem, "/uploads/requests/2")
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(BeEmpty())
	})

	It("rejects cancelled contexts", func() {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := store.Store(cancelled, strings.NewReader("x"), "requests/3", "a.pdf")
		Expect(err).To(MatchError(context.Canceled))
	})
})

var _ = Describe("Batch", func() {
	It("removes every stored file on rollback", func() {
		ctx := context.Background()
		mem := afero.NewMemMapFs()
		store := NewStoreOnFs(mem, nil)
		batch := NewBatch(store, nil)

		files, err := batch.PutAll(ctx, []Upload{
			{Name: "a.pdf", Size: 1, ContentType: "application/pdf", Reader: strings.NewReader("a")},
			{Name: "b.png", Size: 1, ContentType: "image/png", Reader: strings.NewReader("b")},
		}, "quotations/4")
		Expect(err).NotTo(HaveOccurred())
		Expect(files).To(HaveLen(2))
		Expect(batch.Files()).To(Equal(files))

		batch.Rollback(ctx)

		Expect(batch.Files()).To(BeEmpty())
		for _, f := range files {
			exists, err := afero.Exists(mem, f.Path)
			Expect(err).NotTo(HaveOccurred())
			Expect(exists).To(BeFalse())
		}
	})
})
