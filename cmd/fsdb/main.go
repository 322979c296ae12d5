// Command fsdb is a CLI front-end over the fsdb package's database/table/
// record lifecycle, driven through internal/manager.
package main

func main() {
	Execute()
}
