package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"
)

// zipMethodZstd is the ZIP compression method ID for Zstandard (APPNOTE
// 6.3.7). Media files are already compressed, so the encoder runs at a fast
// level; the win comes from the metafile payload.
const zipMethodZstd uint16 = 93

func init() {
	zip.RegisterCompressor(zipMethodZstd, func(w io.Writer) (io.WriteCloser, error) {
		return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	})
	zip.RegisterDecompressor(zipMethodZstd, func(r io.Reader) io.ReadCloser {
		zr, err := zstd.NewReader(r)
		if err != nil {
			return io.NopCloser(&errReader{err: err})
		}
		return zr.IOReadCloser()
	})
}

type errReader struct{ err error }

func (r *errReader) Read([]byte) (int, error) { return 0, r.err }

// SharedPayload is duplicated into every volume so each archive is
// independently extractable: the dataset manifest plus the full rewritten
// metafile bodies, keyed by archive path.
type SharedPayload struct {
	ConfigName string
	ConfigYAML []byte
	Metafiles  map[string][]byte
}

// Overhead is the byte cost the payload adds to each volume.
func (p SharedPayload) Overhead() int64 {
	total := int64(len(p.ConfigYAML))
	for _, body := range p.Metafiles {
		total += int64(len(body))
	}
	return total
}

// WriteVolume creates one zip archive containing the shared payload and the
// volume's media entries. Entries that cannot be read are logged and
// skipped; the volume is still produced.
func WriteVolume(zipPath string, payload SharedPayload, vol Volume) error {
	start := time.Now()
	log.Info().Str("zip", filepath.Base(zipPath)).Int("files", len(vol.Entries)).Msg("creating volume")

	if err := os.MkdirAll(filepath.Dir(zipPath), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	out, err := os.Create(zipPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", zipPath, err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)

	if len(payload.ConfigYAML) > 0 {
		name := payload.ConfigName
		if name == "" {
			name = "dataset_config.yaml"
		}
		if err := writeZipBytes(zw, name, payload.ConfigYAML); err != nil {
			return err
		}
	}

	// Stable metafile order inside the archive.
	names := make([]string, 0, len(payload.Metafiles))
	for name := range payload.Metafiles {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := writeZipBytes(zw, name, payload.Metafiles[name]); err != nil {
			return err
		}
	}

	for _, e := range vol.Entries {
		if err := writeZipFile(zw, e.ArchivePath, e.SrcPath); err != nil {
			log.Warn().Err(err).Str("src", e.SrcPath).Msg("skipping unreadable media file")
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize %s: %w", zipPath, err)
	}
	log.Info().
		Str("zip", filepath.Base(zipPath)).
		Dur("elapsed", time.Since(start)).
		Msg("volume created")
	return nil
}

func writeZipBytes(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zipMethodZstd})
	if err != nil {
		return fmt.Errorf("create zip entry %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write zip entry %s: %w", name, err)
	}
	return nil
}

func writeZipFile(zw *zip.Writer, name, srcPath string) error {
	f, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", srcPath, err)
	}
	defer f.Close()

	// Media bytes are stored: jpeg/mp4 do not compress further and the
	// copy stays streaming.
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Store})
	if err != nil {
		return fmt.Errorf("create zip entry %s: %w", name, err)
	}
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("write zip entry %s: %w", name, err)
	}
	return nil
}

// VolumePath names the nth volume archive. A single-volume export keeps the
// bare name; multi-volume exports get _partN suffixes.
func VolumePath(outputBase string, index, total int) string {
	if total <= 1 {
		return outputBase + ".zip"
	}
	return fmt.Sprintf("%s_part%d.zip", outputBase, index+1)
}

// ExtractArchive unpacks one volume into destDir. Paths are sanitized
// against traversal; the shared payload overwrites whatever an earlier
// volume wrote, which is safe because it is identical across volumes.
func ExtractArchive(zipPath, destDir string) (int, error) {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", zipPath, err)
	}
	defer zr.Close()

	extracted := 0
	for _, f := range zr.File {
		clean := filepath.Clean(f.Name)
		if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
			log.Warn().Str("entry", f.Name).Msg("skipping suspicious archive path")
			continue
		}
		dest := filepath.Join(destDir, clean)
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return extracted, err
			}
			continue
		}
		if err := extractFile(f, dest); err != nil {
			return extracted, fmt.Errorf("extract %s: %w", f.Name, err)
		}
		extracted++
	}
	log.Info().Str("zip", filepath.Base(zipPath)).Int("files", extracted).Msg("archive extracted")
	return extracted, nil
}

func extractFile(f *zip.File, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, rc)
	return err
}
