package config

import (
	"fmt"
	"os"

	"zchain/logx"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Transfer struct {
	FromAddress string `yaml:"from"`
	ToAddress   string `yaml:"to"`
	Amount      int64  `yaml:"amount"`
}

// Plan lists the payloads to mine, in order, on top of the genesis transfer.
type Plan struct {
	Genesis    Transfer   `yaml:"genesis"`
	Difficulty int        `yaml:"difficulty"`
	Transfers  []Transfer `yaml:"transfers"`
}

type planFile struct {
	Plan Plan `yaml:"plan"`
}

func DefaultPlan() Plan {
	return Plan{
		Genesis: Transfer{FromAddress: "First_Address", ToAddress: "Second_Address", Amount: 300},
		Transfers: []Transfer{
			{FromAddress: "Second_Address", ToAddress: "Third_Address", Amount: 200},
			{FromAddress: "ThirdAddress", ToAddress: "FourthAddress", Amount: 100},
			{FromAddress: "FourthAddress", ToAddress: "ThirdAddress", Amount: 20},
		},
	}
}

func LoadPlan(path string) (*Plan, error) {
	logx.Info("CONFIG", fmt.Sprintf("Loading chain plan from %s", path))
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open plan %s", path)
	}
	defer file.Close()

	var pf planFile
	if err := yaml.NewDecoder(file).Decode(&pf); err != nil {
		return nil, errors.Wrapf(err, "decode plan %s", path)
	}
	if pf.Plan.Genesis.FromAddress == "" || pf.Plan.Genesis.ToAddress == "" {
		return nil, errors.Errorf("plan %s has no genesis transfer", path)
	}
	if pf.Plan.Difficulty < 0 {
		return nil, errors.Errorf("plan difficulty must not be negative, got %d", pf.Plan.Difficulty)
	}
	logx.Info("CONFIG", fmt.Sprintf("Loaded chain plan | transfers=%d | difficulty=%d", len(pf.Plan.Transfers), pf.Plan.Difficulty))
	return &pf.Plan, nil
}
