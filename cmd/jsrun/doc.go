// Command jsrun runs JavaScript snippets outside the HTTP server.
//
//	jsrun run snippet.js            # local sandbox, prints the /run payload
//	echo '1+1' | jsrun run -        # read the snippet from stdin
//	jsrun remote -s http://host:3210 snippet.js
//	jsrun health --wait             # block until the server is up
//
// run and remote exit with status 2 when the snippet throws and 1 on any
// other error.
package main
