// Command generate writes data/sales_b.parquet, the parquet fixture used by
// the sales_b team. Run it from the testdata directory:
//
//	go run generate.go
package main

import (
	"log"
	"os"

	"github.com/parquet-go/parquet-go"
)

type Sale struct {
	Date      string  `parquet:"date"`
	Region    string  `parquet:"region"`
	Quantity  int64   `parquet:"quantity"`
	UnitPrice float64 `parquet:"unit_price"`
}

func main() {
	sales := []Sale{
		{Date: "2024-01-15", Region: "north", Quantity: 10, UnitPrice: 2.5},
		{Date: "2024-02-03", Region: "south", Quantity: 4, UnitPrice: 12.0},
		{Date: "2024-03-28", Region: "north", Quantity: 6, UnitPrice: 3.0},
		{Date: "2024-04-02", Region: "north", Quantity: 8, UnitPrice: 2.75},
		{Date: "2024-05-19", Region: "south", Quantity: 1, UnitPrice: 40.0},
	}

	path := "data/sales_b.parquet"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	file, err := os.Create(path)
	if err != nil {
		log.Fatal(err)
	}

	writer := parquet.NewGenericWriter[Sale](file)
	if _, err := writer.Write(sales); err != nil {
		log.Fatal(err)
	}
	if err := writer.Close(); err != nil {
		log.Fatal(err)
	}
	if err := file.Close(); err != nil {
		log.Fatal(err)
	}

	log.Printf("Generated %s with %d sales", path, len(sales))
}
