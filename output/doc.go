// Package output writes pipeline results as JSON Lines, CSV or a text table.
//
// Every formatter takes an explicit column order so row datasets and group
// tables print the same way each run:
//
//	f, err := output.New("csv", os.Stdout)
//	if err != nil {
//	    return err
//	}
//	if err := output.WriteResult(f, os.Stdout, result); err != nil {
//	    return err
//	}
//
// GroupRows turns a group table into rows with one column per group_by entry
// and one column holding the aggregate.
//
// CSV output prefixes text starting with =, +, @, | or a control character
// with a single quote so spreadsheets do not evaluate it.
package output
