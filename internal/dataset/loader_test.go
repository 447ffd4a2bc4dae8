package dataset

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCSV = "\uFEFF" +
	"Полное наименование;Сокращенное наименование;ИНН;Основной ОКВЭД;Выручка, руб.;Расходы, руб.;Применяет УСН\n" +
	"ООО Альфа;Альфа;7700000001;62.01;1000,50;400;Да\n" +
	"ООО Бета;Бета;7700000002;62.02;Нет данных;;Нет\n"

func writeTestCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "companies.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoader_Load(t *testing.T) {
	loader := NewLoader(writeTestCSV(t, testCSV))

	records, err := loader.Load()
	require.NoError(t, err)
	require.Len(t, records, 2)

	// BOM must not leak into the first header cell.
	assert.Equal(t, "ООО Альфа", records[0].FullName)
	require.NotNil(t, records[0].Revenue)
	assert.Equal(t, int64(1001), *records[0].Revenue)
	require.NotNil(t, records[0].FinancialResult)
	assert.Equal(t, int64(601), *records[0].FinancialResult)

	assert.Equal(t, "ООО Бета", records[1].FullName)
	assert.Nil(t, records[1].Revenue)
}

func TestLoader_Memoized(t *testing.T) {
	path := writeTestCSV(t, testCSV)
	loader := NewLoader(path)

	first, err := loader.Load()
	require.NoError(t, err)
	require.Len(t, first, 2)

	// The file changes on disk, but the cache must serve the old view
	// until invalidated.
	require.NoError(t, os.WriteFile(path, []byte(testCSV+"ООО Гамма;Гамма;7700000003;63.11;5;1;Да\n"), 0o644))

	second, err := loader.Load()
	require.NoError(t, err)
	assert.Len(t, second, 2)

	loader.Invalidate()
	third, err := loader.Load()
	require.NoError(t, err)
	assert.Len(t, third, 3)
}

func TestLoader_MissingFile(t *testing.T) {
	loader := NewLoader(filepath.Join(t.TempDir(), "nope.csv"))
	_, err := loader.Load()
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrDataFileMissing))
}

func TestLoader_ConcurrentFirstLoad(t *testing.T) {
	loader := NewLoader(writeTestCSV(t, testCSV))

	var wg sync.WaitGroup
	results := make([]int, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			records, err := loader.Load()
			assert.NoError(t, err)
			results[i] = len(records)
		}(i)
	}
	wg.Wait()

	for _, n := range results {
		assert.Equal(t, 2, n)
	}
}

func TestLoader_EmptyFile(t *testing.T) {
	loader := NewLoader(writeTestCSV(t, ""))
	records, err := loader.Load()
	require.NoError(t, err)
	assert.Empty(t, records)
}
