package dataset

import (
	"os"

	"github.com/stocksight/stocksight/internal/config"
)

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0644)
}

func testDatasetConfig() config.DatasetConfig {
	return config.DatasetConfig{
		DataDir:       "./data",
		MaxFileSizeMB: 10,
		SampleRows:    100,
		SpillEnabled:  false,
	}
}
