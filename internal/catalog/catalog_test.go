package catalog

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	smerrors "github.com/Aman-CERP/schemamatch/internal/errors"
)

func sampleRecords() []AttributeRecord {
	return []AttributeRecord{
		{ID: 1, Schema: "public", Table: "clients", Column: "nom", Type: "varchar", Description: "nom du client"},
		{ID: 2, Schema: "public", Table: "clients", Column: "id", Type: "int", Constraint: "PRIMARY KEY"},
		{ID: 3, Schema: "public", Table: "commandes", Column: "client_id", Type: "int", Relation: "clients.id", Description: "référence client"},
	}
}

func TestTables_DistinctInFirstSeenOrder(t *testing.T) {
	refs := Tables(sampleRecords())

	assert.Equal(t, []TableRef{
		{Schema: "public", Table: "clients"},
		{Schema: "public", Table: "commandes"},
	}, refs)
	assert.Empty(t, Tables(nil))
}

func TestDescribe_CaseInsensitive(t *testing.T) {
	desc, ok := Describe(sampleRecords(), "PUBLIC", "Clients", "NOM")
	assert.True(t, ok)
	assert.Equal(t, "nom du client", desc)

	_, ok = Describe(sampleRecords(), "public", "clients", "missing")
	assert.False(t, ok)
}

func TestQualifiedName(t *testing.T) {
	assert.Equal(t, "public.clients.nom", sampleRecords()[0].QualifiedName())
	assert.Equal(t, "t.c", AttributeRecord{Table: "t", Column: "c"}.QualifiedName())
}

func TestDecode_Formats(t *testing.T) {
	tests := []struct {
		name string
		data string
		want int
	}{
		{"empty", "", 0},
		{"document", "version: 1\nattributes:\n  - schema: public\n    table: clients\n    nom_attr: nom\n", 1},
		{"empty attributes", "version: 1\nattributes: []\n", 0},
		{"bare list", "- table: a\n  nom_attr: x\n- table: b\n  nom_attr: y\n", 2},
		{"json", `{"attributes":[{"schema":"s","table":"t","nom_attr":"c","description":"d"}]}`, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := Decode([]byte(tt.data))
			require.NoError(t, err)
			assert.Len(t, records, tt.want)
		})
	}
}

func TestDecode_RejectsScalar(t *testing.T) {
	_, err := Decode([]byte("just a string"))
	assert.Error(t, err)
}

func TestWriteFile_RoundTrip(t *testing.T) {
	for _, name := range []string{"catalog.yaml", "catalog.json"} {
		t.Run(name, func(t *testing.T) {
			// Given: records written to a snapshot
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, WriteFile(path, sampleRecords()))

			// When: reading them back
			got, err := NewFileSource(path).Attributes(context.Background())

			// Then: the records are identical
			require.NoError(t, err)
			assert.Equal(t, sampleRecords(), got)
		})
	}
}

func TestWriteFile_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")

	require.NoError(t, WriteFile(path, sampleRecords()))
	require.NoError(t, WriteFile(path, sampleRecords()[:1]))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"catalog.yaml", "catalog.yaml.lock"}, names)
}

func TestFileSource_MissingFile(t *testing.T) {
	src := NewFileSource(filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := src.Attributes(context.Background())

	require.Error(t, err)
	assert.Equal(t, smerrors.ErrCodeFileNotFound, smerrors.GetCode(err))
	assert.NoError(t, src.Close())
}

func TestFileSource_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("attributes: [unclosed"), 0644))

	_, err := NewFileSource(path).Attributes(context.Background())

	require.Error(t, err)
	assert.Equal(t, smerrors.ErrCodeCatalogCorrupt, smerrors.GetCode(err))
}

func TestFileLock_ExclusiveBlocksOtherHolders(t *testing.T) {
	// Given: a writer holding the snapshot lock
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	writer := newFileLock(path)
	require.NoError(t, writer.Lock())

	// When: another holder tries the same lock file
	other := flock.New(path + ".lock")
	acquired, err := other.TryRLock()

	// Then: it is refused until the writer releases
	require.NoError(t, err)
	assert.False(t, acquired)

	require.NoError(t, writer.Unlock())
	acquired, err = other.TryRLock()
	require.NoError(t, err)
	assert.True(t, acquired)
	require.NoError(t, other.Unlock())
	assert.NoError(t, writer.Unlock())
}

func TestFileSource_MissingPathCreatesNothing(t *testing.T) {
	// Given: a snapshot path under directories that do not exist
	root := t.TempDir()
	path := filepath.Join(root, "nested", "deeper", "catalog.yaml")

	// When: reading it
	_, err := NewFileSource(path).Attributes(context.Background())

	// Then: FILE_NOT_FOUND, and neither the directories nor a lock file appear
	require.Error(t, err)
	assert.Equal(t, smerrors.ErrCodeFileNotFound, smerrors.GetCode(err))
	assert.NoDirExists(t, filepath.Join(root, "nested"))
	assert.NoFileExists(t, path+".lock")
}

func TestFileSource_ReadOnlyDirectory(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("directory permissions not enforced")
	}

	// Given: a snapshot in a directory the process cannot write to
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, WriteFile(path, sampleRecords()))
	require.NoError(t, os.Remove(path+".lock"))
	require.NoError(t, os.Chmod(dir, 0o555))
	t.Cleanup(func() { _ = os.Chmod(dir, 0o755) })

	// When: reading it
	records, err := NewFileSource(path).Attributes(context.Background())

	// Then: the records load without a lock file
	require.NoError(t, err)
	assert.Equal(t, sampleRecords(), records)
	assert.NoFileExists(t, path+".lock")
}
