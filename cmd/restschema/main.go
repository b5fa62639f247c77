// Command restschema calls schema-described REST resources from the shell
// and serves a mock platform for local development.
package main

func main() {
	Execute()
}
