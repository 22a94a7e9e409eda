package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/nemanja-m/jobgrid/pkg/client"
)

const usage = `Usage: client [-addr host:port] <command> [options]

Commands:
  register -email <email>
  submit   -email <email> -password <pw> -script <path> -data <dir> -output <dir> [-wait]
  status   -email <email> -password <pw> -job <id>
  cancel   -email <email> -password <pw> -job <id>
  bill     -email <email> -password <pw> -job <id>
`

func main() {
	addr := flag.String("addr", "localhost:8888", "coordinator client address")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	c, err := client.Dial(*addr)
	if err != nil {
		fatal(err)
	}
	defer c.Close()

	switch args[0] {
	case "register":
		err = runRegister(c, args[1:])
	case "submit":
		err = runSubmit(c, args[1:])
	case "status":
		err = runStatus(c, args[1:])
	case "cancel":
		err = runCancel(c, args[1:])
	case "bill":
		err = runBill(c, args[1:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		fatal(err)
	}
}

func runRegister(c *client.Client, args []string) error {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	email := fs.String("email", "", "account email")
	fs.Parse(args)

	password, err := c.Register(*email)
	if err != nil {
		return err
	}
	fmt.Printf("Registered %s\nPassword: %s\n", *email, password)
	return nil
}

func runSubmit(c *client.Client, args []string) error {
	fs := flag.NewFlagSet("submit", flag.ExitOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	script := fs.String("script", "", "script to execute")
	data := fs.String("data", "", "directory with input data files")
	output := fs.String("output", "", "directory for output files")
	wait := fs.Bool("wait", false, "wait for output files")
	fs.Parse(args)

	if err := c.Login(*email, *password); err != nil {
		return err
	}
	jobID, err := c.Submit(*script, *data, *output)
	if err != nil {
		return err
	}
	fmt.Printf("Job submitted: %s\n", jobID)

	if !*wait {
		return nil
	}
	files, err := c.AwaitOutputs(*output)
	if err != nil {
		return err
	}
	fmt.Printf("Received %d output file(s) in %s\n", len(files), *output)
	return nil
}

func runStatus(c *client.Client, args []string) error {
	jobID, err := login(c, args, "status")
	if err != nil {
		return err
	}
	status, err := c.Status(jobID)
	if err != nil {
		return err
	}
	fmt.Printf("Job %s: %s\n", jobID, status.State)
	if status.BillInfo != nil {
		fmt.Printf("Output: %s\nCost: $%.2f\n", status.OutputDir, status.BillInfo.Cost)
	}
	return nil
}

func runCancel(c *client.Client, args []string) error {
	jobID, err := login(c, args, "cancel")
	if err != nil {
		return err
	}
	if err := c.Cancel(jobID); err != nil {
		return err
	}
	fmt.Printf("Job %s cancelled\n", jobID)
	return nil
}

func runBill(c *client.Client, args []string) error {
	jobID, err := login(c, args, "bill")
	if err != nil {
		return err
	}
	bill, err := c.GetBill(jobID)
	if err != nil {
		return err
	}
	fmt.Printf("Job %s\nStarted: %s\nEnded: %s\nCost: $%.2f\n",
		bill.JobID, bill.StartedAt, bill.EndedAt, bill.Cost)
	return nil
}

// login parses the shared credential and job id flags and logs the session in.
func login(c *client.Client, args []string, name string) (uuid.UUID, error) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	job := fs.String("job", "", "job id")
	fs.Parse(args)

	jobID, err := uuid.Parse(*job)
	if err != nil {
		return uuid.Nil, errors.New("a valid -job id is required")
	}
	if err := c.Login(*email, *password); err != nil {
		return uuid.Nil, err
	}
	return jobID, nil
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
