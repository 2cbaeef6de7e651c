package env

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"
)

// Define the suite, and absorb the built-in basic suite
// functionality from testify - including a T() method which
// returns the current testing context
type TestEnvSuite struct {
	suite.Suite
	envPath string
}

func (test *TestEnvSuite) SetupTest() {
	test.envPath = filepath.Join(test.T().TempDir(), ".test.env")

	err := WriteEnv(map[string]string{"DEPLOYER_ENV_TEST_KEY": "loaded"}, test.envPath)
	test.Require().NoError(err, "failed to write the data into: "+test.envPath)
}

func (test *TestEnvSuite) TearDownTest() {
	test.Require().NoError(os.Unsetenv("DEPLOYER_ENV_TEST_KEY"))
}

func (test *TestEnvSuite) TestLoad() {
	err := LoadAnyEnv(test.envPath)
	test.Require().NoError(err)
	test.Require().Equal("loaded", os.Getenv("DEPLOYER_ENV_TEST_KEY"))

	// the missing file fails
	err = LoadAnyEnv(filepath.Join(test.T().TempDir(), "missing.env"))
	test.Require().Error(err)
}

func (test *TestEnvSuite) TestNoOverwrite() {
	test.Require().NoError(os.Setenv("DEPLOYER_ENV_TEST_KEY", "from_shell"))

	err := LoadAnyEnv(test.envPath)
	test.Require().NoError(err)
	test.Require().Equal("from_shell", os.Getenv("DEPLOYER_ENV_TEST_KEY"))
}

// In order for 'go test' to run this suite, we need to create
// a normal test function and pass our suite to suite.Run
func TestEnv(t *testing.T) {
	suite.Run(t, new(TestEnvSuite))
}
