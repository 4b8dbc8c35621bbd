package normalize

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"
	"github.com/urbanflow/trip-demand/internal/trips"
	"github.com/urbanflow/trip-demand/pkg/common"
)

// Reader loads raw monthly batch files from the ingestion collaborator's
// drop directory. One columnar file per (vehicle-type, month), named
// <vehicle>_tripdata_<YYYY-MM>.parquet.
type Reader struct {
	dir string
}

// NewReader creates a raw batch reader rooted at dir
func NewReader(dir string) *Reader {
	return &Reader{dir: dir}
}

// Path returns the expected file location for a partition
func (r *Reader) Path(partition trips.Partition) string {
	name := fmt.Sprintf("%s_tripdata_%s.parquet", partition.VehicleType, partition.Period)
	return filepath.Join(r.dir, name)
}

// Read loads the raw batch for one partition. A missing file is transient
// from the pipeline's point of view (the ingestion collaborator may still be
// delivering), so it is wrapped for the retry layer. A file that cannot be
// decoded under the partition's expected layout is a SchemaError.
func (r *Reader) Read(partition trips.Partition) (*RawBatch, error) {
	path := r.Path(partition)
	if _, err := os.Stat(path); err != nil {
		return nil, common.NewTransientError("raw batch read", err)
	}

	batch := &RawBatch{VehicleType: string(partition.VehicleType), Period: partition.Period}

	var err error
	switch partition.VehicleType {
	case trips.VehicleYellow:
		batch.Yellow, err = parquet.ReadFile[YellowRow](path)
	case trips.VehicleGreen:
		batch.Green, err = parquet.ReadFile[GreenRow](path)
	case trips.VehicleFHV:
		batch.FHV, err = parquet.ReadFile[FHVRow](path)
	case trips.VehicleFHVHV:
		batch.FHVHV, err = parquet.ReadFile[FHVHVRow](path)
	default:
		return nil, common.NewSchemaError(string(partition.VehicleType), "unrecognized vehicle type tag", nil)
	}
	if err != nil {
		return nil, common.NewSchemaError(string(partition.VehicleType), fmt.Sprintf("failed to decode %s", path), err)
	}

	return batch, nil
}
