// authdeploy compiles the AuthContract smartcontract and deploys it
// on the EVM blockchain.
//
// The commands are:
//   - compile to turn the solidity source into the abi and bytecode files
//   - deploy to send the bytecode to the blockchain and save the contract address
//   - status to check the deployed contract
//
// The private key of the deployer is read from the DEPLOYER_PRIVATE_KEY environment variable
// or from the .env file. Set DEPLOYER_SECRET_SOURCE=vault to read it from the hashicorp vault.
package main

import (
	"fmt"
	"os"

	"github.com/blocklords/authdeploy/command"
)

func main() {
	ctl := command.New()

	if err := ctl.Run(os.Args); err != nil {
		fmt.Fprintln(ctl.ErrWriter, err)
		os.Exit(1)
	}
}
